package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedfuse/feedfuse/pkg/models"
)

func newTestValidator(t *testing.T) *SignalValidator {
	t.Helper()
	v, err := NewSignalValidator()
	require.NoError(t, err)
	return v
}

func TestParseSignal_Valid(t *testing.T) {
	v := newTestValidator(t)
	id := uuid.New()

	raw := []byte(`{
		"signal_id": "` + id.String() + `",
		"user_id": "user-1",
		"signal_type": "like",
		"content_id": "post-42",
		"session_id": "sess-1",
		"timestamp": "2026-03-01T12:00:00Z",
		"duration": 12.5,
		"intensity": 0.8,
		"metadata": {"source": "web"}
	}`)

	signal, result := v.ParseSignal(raw)
	require.True(t, result.Valid)

	assert.Equal(t, id, signal.SignalID)
	assert.Equal(t, "user-1", signal.UserID)
	assert.Equal(t, models.SignalLike, signal.Type)
	assert.Equal(t, "post-42", signal.ContentID)
	assert.Equal(t, "sess-1", signal.SessionID)
	assert.Equal(t, 12.5, signal.Duration)
	assert.Equal(t, 0.8, signal.Intensity)
	assert.Equal(t, "web", signal.Metadata["source"])
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), signal.Timestamp.UTC())
}

func TestParseSignal_Defaults(t *testing.T) {
	v := newTestValidator(t)
	frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return frozen }

	t.Run("missing intensity defaults to one", func(t *testing.T) {
		signal, result := v.ParseSignal([]byte(`{"user_id": "u", "signal_type": "view"}`))
		require.True(t, result.Valid)
		assert.Equal(t, 1.0, signal.Intensity)
	})

	t.Run("explicit zero intensity survives", func(t *testing.T) {
		signal, result := v.ParseSignal([]byte(`{"user_id": "u", "signal_type": "view", "intensity": 0}`))
		require.True(t, result.Valid)
		assert.Equal(t, 0.0, signal.Intensity)
	})

	t.Run("missing timestamp defaults to now", func(t *testing.T) {
		signal, result := v.ParseSignal([]byte(`{"user_id": "u", "signal_type": "view"}`))
		require.True(t, result.Valid)
		assert.Equal(t, frozen, signal.Timestamp)
	})

	t.Run("missing signal id is generated", func(t *testing.T) {
		signal, result := v.ParseSignal([]byte(`{"user_id": "u", "signal_type": "view"}`))
		require.True(t, result.Valid)
		assert.NotEqual(t, uuid.Nil, signal.SignalID)
	})
}

func TestParseSignal_UnknownFieldsBecomeMetadata(t *testing.T) {
	v := newTestValidator(t)

	signal, result := v.ParseSignal([]byte(`{
		"user_id": "u",
		"signal_type": "click",
		"experiment": "feed-v2",
		"position": 3
	}`))
	require.True(t, result.Valid)
	assert.Equal(t, "feed-v2", signal.Metadata["experiment"])
	assert.Equal(t, 3.0, signal.Metadata["position"])
	assert.NotContains(t, signal.Metadata, "user_id")
}

func TestParseSignal_Rejections(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"missing user id", `{"signal_type": "view"}`, "SCHEMA_VIOLATION"},
		{"missing signal type", `{"user_id": "u"}`, "SCHEMA_VIOLATION"},
		{"unknown signal type", `{"user_id": "u", "signal_type": "teleport"}`, "SCHEMA_VIOLATION"},
		{"intensity above one", `{"user_id": "u", "signal_type": "view", "intensity": 1.5}`, "SCHEMA_VIOLATION"},
		{"negative intensity", `{"user_id": "u", "signal_type": "view", "intensity": -0.1}`, "SCHEMA_VIOLATION"},
		{"negative duration", `{"user_id": "u", "signal_type": "view", "duration": -5}`, "SCHEMA_VIOLATION"},
		{"empty user id", `{"user_id": "", "signal_type": "view"}`, "SCHEMA_VIOLATION"},
		{"wrong type for user id", `{"user_id": 42, "signal_type": "view"}`, "SCHEMA_VIOLATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, result := v.ParseSignal([]byte(tt.raw))
			require.False(t, result.Valid)
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, tt.code, result.Errors[0].Code)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		_, result := v.ParseSignal([]byte(`{"user_id":`))
		require.False(t, result.Valid)
	})
}

func TestValidationResult_ToAPIError(t *testing.T) {
	t.Run("valid result has no error", func(t *testing.T) {
		vr := &ValidationResult{Valid: true}
		assert.Nil(t, vr.ToAPIError())
	})

	t.Run("envelope carries field errors", func(t *testing.T) {
		vr := invalidResult("intensity", "must be at most 1", "SCHEMA_VIOLATION")

		envelope := vr.ToAPIError()
		errObj := envelope["error"].(map[string]interface{})
		assert.Equal(t, "VALIDATION_ERROR", errObj["code"])

		details := errObj["details"].(map[string]interface{})
		fieldErrors := details["fieldErrors"].(map[string][]string)
		assert.Equal(t, []string{"must be at most 1"}, fieldErrors["intensity"])
	})
}
