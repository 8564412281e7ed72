package plate

import (
	"encoding/base64"
	"time"
)

// DetectionResult — structured outcome of one recognition call.
// Fields are taken verbatim from the model; nothing is normalized.
type DetectionResult struct {
	PlateNumber        string `json:"plateNumber"`
	Confidence         string `json:"confidence"`         // "High" | "Medium" | "Low" | ...
	VehicleDescription string `json:"vehicleDescription"` // color, make, type
	Region             string `json:"region,omitempty"`
}

// HistoryItem — a past result together with the image it came from.
type HistoryItem struct {
	ID        string          `json:"id"`
	ImageURL  string          `json:"imageUrl"` // data:<mime>;base64,<payload>
	Result    DetectionResult `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

// Image is an encoded raster image (JPEG/PNG/WebP/...) with its MIME type.
type Image struct {
	MIMEType string
	Data     []byte
}

func (im Image) DataURL() string {
	return "data:" + im.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(im.Data)
}
