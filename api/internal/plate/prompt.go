package plate

// Instruction is sent together with the image on every recognition request.
const Instruction = "Analyze this image and identify the vehicle's license plate. " +
	"Extract the alphanumeric characters exactly as they appear on the plate. " +
	"If there are multiple plates, focus on the most prominent one. " +
	"Return the results in a JSON format."

// Field descriptions shared by every engine's schema declaration.
const (
	DescPlateNumber        = "The extracted license plate number characters."
	DescConfidence         = "A qualitative confidence score (e.g., High, Medium, Low)."
	DescVehicleDescription = "A brief description of the vehicle (color, make, type)."
	DescRegion             = "The estimated region or state of the license plate, if discernible."
)

// RequiredFields of the output schema, in declaration order.
var RequiredFields = []string{"plateNumber", "confidence", "vehicleDescription"}

// Schema is the JSON Schema of DetectionResult, for providers that take a raw schema document.
const Schema = `{
  "type": "object",
  "properties": {
    "plateNumber": {
      "type": "string",
      "description": "The extracted license plate number characters."
    },
    "confidence": {
      "type": "string",
      "description": "A qualitative confidence score (e.g., High, Medium, Low)."
    },
    "vehicleDescription": {
      "type": "string",
      "description": "A brief description of the vehicle (color, make, type)."
    },
    "region": {
      "type": "string",
      "description": "The estimated region or state of the license plate, if discernible."
    }
  },
  "required": ["plateNumber", "confidence", "vehicleDescription"]
}`
