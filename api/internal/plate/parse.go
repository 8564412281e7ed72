package plate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"alpd/api/internal/util"
)

// UnparseableMessage is shown to the user whenever the model reply is not JSON.
const UnparseableMessage = "Failed to parse AI response. The image might be too blurry or not contain a visible plate."

// UnexpectedMessage replaces errors that carry no text of their own.
const UnexpectedMessage = "An unexpected error occurred during analysis."

var (
	// ErrUnparseable matches every *ParseError via errors.Is.
	ErrUnparseable = errors.New("unparseable AI response")
	// ErrSchemaMismatch: the reply is valid JSON but not a DetectionResult, or (strict
	// mode) it lacks required fields.
	ErrSchemaMismatch = errors.New("AI response does not match the expected schema")
)

// ParseError — the reply was not valid JSON. Error() is always UnparseableMessage,
// the decoder error stays reachable through Unwrap.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string        { return UnparseableMessage }
func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) Is(target error) bool { return target == ErrUnparseable }

// ParseResponse maps the model's reply text to a DetectionResult.
// Empty text is treated as "{}" and yields a zero result without error.
// Text that is not JSON gives a *ParseError; JSON of the wrong shape
// (an array, a number where a string belongs) gives ErrSchemaMismatch.
func ParseResponse(text string) (DetectionResult, error) {
	s := util.StripCodeFences(strings.TrimSpace(text))
	if s == "" {
		s = "{}"
	}
	var out DetectionResult
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			if te.Field == "" {
				return DetectionResult{}, fmt.Errorf("%w: got a JSON %s, want an object", ErrSchemaMismatch, te.Value)
			}
			return DetectionResult{}, fmt.Errorf("%w: %s is a JSON %s, want %s", ErrSchemaMismatch, te.Field, te.Value, te.Type)
		}
		return DetectionResult{}, &ParseError{Raw: s, Err: err}
	}
	return out, nil
}

// Missing lists required fields that are empty.
func (r DetectionResult) Missing() []string {
	var miss []string
	if strings.TrimSpace(r.PlateNumber) == "" {
		miss = append(miss, "plateNumber")
	}
	if strings.TrimSpace(r.Confidence) == "" {
		miss = append(miss, "confidence")
	}
	if strings.TrimSpace(r.VehicleDescription) == "" {
		miss = append(miss, "vehicleDescription")
	}
	return miss
}

// Validate returns ErrSchemaMismatch (wrapped with the field names) if a required field is empty.
func (r DetectionResult) Validate() error {
	if miss := r.Missing(); len(miss) > 0 {
		return fmt.Errorf("%w: missing %s", ErrSchemaMismatch, strings.Join(miss, ", "))
	}
	return nil
}

// UserMessage is the text a front end shows for a failed analysis.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return UnexpectedMessage
}
