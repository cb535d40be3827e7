package domain

import (
	"fmt"
	"maps"
)

// ValidationResult is the outcome of a configuration or connection validation.
// It is not persisted; it is cached through its map form.
type ValidationResult struct {
	IsValid           bool           `json:"is_valid"`
	Errors            []string       `json:"errors"`
	Warnings          []string       `json:"warnings"`
	RecommendedAction string         `json:"recommended_action,omitempty"`
	Metadata          map[string]any `json:"metadata"`
}

// NewValidationResult returns a valid, empty result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Metadata: map[string]any{},
	}
}

// AddError records an error and marks the result invalid.
func (r *ValidationResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.IsValid = false
}

// AddWarning records a warning. Warnings do not affect validity.
func (r *ValidationResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// SetMetadata sets a metadata entry.
func (r *ValidationResult) SetMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Metadata[key] = value
}

// Merge folds other into r.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.IsValid {
		r.IsValid = false
	}
	if r.RecommendedAction == "" {
		r.RecommendedAction = other.RecommendedAction
	}
	for k, v := range other.Metadata {
		r.SetMetadata(k, v)
	}
}

// ToMap serializes the result into a plain map.
func (r *ValidationResult) ToMap() map[string]any {
	errs := make([]string, len(r.Errors))
	copy(errs, r.Errors)
	warnings := make([]string, len(r.Warnings))
	copy(warnings, r.Warnings)
	metadata := make(map[string]any, len(r.Metadata))
	maps.Copy(metadata, r.Metadata)

	return map[string]any{
		"is_valid":           r.IsValid,
		"errors":             errs,
		"warnings":           warnings,
		"recommended_action": r.RecommendedAction,
		"metadata":           metadata,
	}
}

// ValidationResultFromMap rebuilds a result produced by ToMap.
// It also accepts the generic shapes produced by decoding JSON.
func ValidationResultFromMap(m map[string]any) (*ValidationResult, error) {
	r := NewValidationResult()

	if v, ok := m["is_valid"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: is_valid must be a bool", ErrInvalidInput)
		}
		r.IsValid = b
	}

	var err error
	if r.Errors, err = stringList(m["errors"]); err != nil {
		return nil, fmt.Errorf("errors: %w", err)
	}
	if r.Warnings, err = stringList(m["warnings"]); err != nil {
		return nil, fmt.Errorf("warnings: %w", err)
	}

	if v, ok := m["recommended_action"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: recommended_action must be a string", ErrInvalidInput)
		}
		r.RecommendedAction = s
	}

	if v, ok := m["metadata"]; ok && v != nil {
		md, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: metadata must be an object", ErrInvalidInput)
		}
		maps.Copy(r.Metadata, md)
	}

	return r, nil
}

func stringList(v any) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: expected string, got %T", ErrInvalidInput, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected list, got %T", ErrInvalidInput, v)
	}
}
