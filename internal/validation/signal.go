package validation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/feedfuse/feedfuse/pkg/models"
)

// signalSchema is the ingestion-boundary contract for signal submissions.
// Unknown top-level fields are allowed here and routed to the metadata map
// by ParseSignal rather than rejected.
const signalSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["user_id", "signal_type"],
	"properties": {
		"signal_id": {"type": "string", "format": "uuid"},
		"user_id": {"type": "string", "minLength": 1},
		"signal_type": {
			"type": "string",
			"enum": ["view", "like", "comment", "share", "follow", "bookmark", "click", "scroll", "dwell", "completion"]
		},
		"timestamp": {"type": "string", "format": "date-time"},
		"content_id": {"type": "string"},
		"session_id": {"type": "string"},
		"duration": {"type": "number", "minimum": 0},
		"intensity": {"type": "number", "minimum": 0, "maximum": 1},
		"metadata": {"type": "object"}
	}
}`

// knownSignalFields are the schema-owned top-level keys. Everything else in
// a submission is treated as caller metadata.
var knownSignalFields = map[string]bool{
	"signal_id":   true,
	"user_id":     true,
	"signal_type": true,
	"timestamp":   true,
	"content_id":  true,
	"session_id":  true,
	"duration":    true,
	"intensity":   true,
	"metadata":    true,
}

// SignalSubmission is the decoded request body after schema validation.
type SignalSubmission struct {
	SignalID  string                 `json:"signal_id"`
	UserID    string                 `json:"user_id" validate:"required"`
	Type      string                 `json:"signal_type" validate:"required"`
	Timestamp time.Time              `json:"timestamp"`
	ContentID string                 `json:"content_id"`
	SessionID string                 `json:"session_id"`
	Duration  float64                `json:"duration" validate:"gte=0"`
	Intensity float64                `json:"intensity" validate:"gte=0,lte=1"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// SignalValidator validates raw signal submissions at the ingestion boundary.
type SignalValidator struct {
	schema   *gojsonschema.Schema
	validate *validator.Validate
	now      func() time.Time
}

func NewSignalValidator() (*SignalValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(signalSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile signal schema: %w", err)
	}
	return &SignalValidator{
		schema:   schema,
		validate: validator.New(),
		now:      time.Now,
	}, nil
}

// ParseSignal validates a raw submission and converts it into a typed
// Signal. Unknown top-level fields are folded into the metadata map.
func (v *SignalValidator) ParseSignal(raw []byte) (models.Signal, *ValidationResult) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return models.Signal{}, invalidResult("body", fmt.Sprintf("malformed JSON: %v", err), "MALFORMED_JSON")
	}
	if !result.Valid() {
		vr := &ValidationResult{Valid: false}
		for _, schemaErr := range result.Errors() {
			vr.Errors = append(vr.Errors, ValidationError{
				Field:   schemaErr.Field(),
				Message: schemaErr.Description(),
				Code:    "SCHEMA_VIOLATION",
				Value:   schemaErr.Value(),
			})
		}
		return models.Signal{}, vr
	}

	var submission SignalSubmission
	if err := json.Unmarshal(raw, &submission); err != nil {
		return models.Signal{}, invalidResult("body", err.Error(), "MALFORMED_JSON")
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return models.Signal{}, invalidResult("body", err.Error(), "MALFORMED_JSON")
	}
	if _, present := generic["intensity"]; !present {
		submission.Intensity = 1.0
	}

	if err := v.validate.Struct(&submission); err != nil {
		vr := &ValidationResult{Valid: false}
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				vr.Errors = append(vr.Errors, ValidationError{
					Field:   fe.Field(),
					Message: fmt.Sprintf("failed validation on '%s'", fe.Tag()),
					Code:    "FIELD_INVALID",
					Value:   fe.Value(),
				})
			}
		} else {
			vr.Errors = append(vr.Errors, ValidationError{
				Field: "body", Message: err.Error(), Code: "FIELD_INVALID",
			})
		}
		return models.Signal{}, vr
	}

	signal := models.Signal{
		UserID:    submission.UserID,
		Type:      models.SignalType(submission.Type),
		Timestamp: submission.Timestamp,
		ContentID: submission.ContentID,
		SessionID: submission.SessionID,
		Duration:  submission.Duration,
		Intensity: submission.Intensity,
		Metadata:  submission.Metadata,
	}

	if submission.SignalID != "" {
		if id, err := uuid.Parse(submission.SignalID); err == nil {
			signal.SignalID = id
		}
	}
	if signal.SignalID == uuid.Nil {
		signal.SignalID = uuid.New()
	}
	if signal.Timestamp.IsZero() {
		signal.Timestamp = v.now()
	}

	// Unknown top-level fields ride along as metadata.
	for key, value := range generic {
		if knownSignalFields[key] {
			continue
		}
		if signal.Metadata == nil {
			signal.Metadata = make(map[string]interface{})
		}
		signal.Metadata[key] = value
	}

	return signal, &ValidationResult{Valid: true}
}

// ValidationResult is the outcome of validating one submission.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError describes one failed constraint.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// ToAPIError renders validation errors in the API error envelope.
func (vr *ValidationResult) ToAPIError() map[string]interface{} {
	if vr.Valid {
		return nil
	}

	fieldErrors := make(map[string][]string)
	for _, err := range vr.Errors {
		if err.Field != "" {
			fieldErrors[err.Field] = append(fieldErrors[err.Field], err.Message)
		}
	}

	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "VALIDATION_ERROR",
			"message": "Request validation failed",
			"details": map[string]interface{}{
				"validationErrors": vr.Errors,
				"fieldErrors":      fieldErrors,
			},
		},
	}
}

func invalidResult(field, message, code string) *ValidationResult {
	return &ValidationResult{
		Valid:  false,
		Errors: []ValidationError{{Field: field, Message: message, Code: code}},
	}
}
