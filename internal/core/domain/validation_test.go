package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_AddError(t *testing.T) {
	r := NewValidationResult()
	assert.True(t, r.IsValid)

	r.AddWarning("root folder %q not set", "root_folder_id")
	assert.True(t, r.IsValid)

	r.AddError("missing required setting: %s", "client_id")
	assert.False(t, r.IsValid)
	assert.Equal(t, []string{"missing required setting: client_id"}, r.Errors)
	assert.Equal(t, []string{`root folder "root_folder_id" not set`}, r.Warnings)
}

func TestValidationResult_RoundTrip(t *testing.T) {
	original := NewValidationResult()
	original.AddError("missing client_id")
	original.AddError("redirect_uri must be absolute")
	original.AddWarning("using default root folder")
	original.RecommendedAction = "Complete the Google Drive configuration"
	original.SetMetadata("provider", "google-drive")
	original.SetMetadata("checked_keys", 3)

	restored, err := ValidationResultFromMap(original.ToMap())
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestValidationResult_RoundTrip_Empty(t *testing.T) {
	original := NewValidationResult()

	restored, err := ValidationResultFromMap(original.ToMap())
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestValidationResult_ToMapCopies(t *testing.T) {
	r := NewValidationResult()
	r.AddError("a")

	m := r.ToMap()
	m["errors"].([]string)[0] = "mutated"

	assert.Equal(t, "a", r.Errors[0])
}

func TestValidationResultFromMap_JSONDecoded(t *testing.T) {
	original := NewValidationResult()
	original.AddError("missing bucket")
	original.AddWarning("endpoint is not https")
	original.RecommendedAction = "Set the bucket"
	original.SetMetadata("provider", "amazon-s3")

	data, err := json.Marshal(original.ToMap())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := ValidationResultFromMap(decoded)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestValidationResultFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
	}{
		{"is_valid not bool", map[string]any{"is_valid": "yes"}},
		{"errors not list", map[string]any{"errors": "boom"}},
		{"error item not string", map[string]any{"errors": []any{1}}},
		{"metadata not object", map[string]any{"metadata": []any{}}},
		{"action not string", map[string]any{"recommended_action": 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidationResultFromMap(tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestValidationResult_Merge(t *testing.T) {
	a := NewValidationResult()
	a.AddWarning("w1")

	b := NewValidationResult()
	b.AddError("e1")
	b.RecommendedAction = "fix it"
	b.SetMetadata("k", "v")

	a.Merge(b)
	a.Merge(nil)

	assert.False(t, a.IsValid)
	assert.Equal(t, []string{"e1"}, a.Errors)
	assert.Equal(t, []string{"w1"}, a.Warnings)
	assert.Equal(t, "fix it", a.RecommendedAction)
	assert.Equal(t, "v", a.Metadata["k"])
}
