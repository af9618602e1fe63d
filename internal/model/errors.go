package model

import (
	"fmt"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
)

// ValidationError reports a malformed derived entity. It indicates a bug in
// whatever produced the entity, not a runtime condition.
type ValidationError struct {
	Entity  string           `json:"entity"`
	Role    aggregation.Role `json:"-"`
	Field   string           `json:"field,omitempty"`
	Message string           `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("entity %q (%s) field '%s': %s", e.Entity, e.Role, e.Field, e.Message)
	}
	return fmt.Sprintf("entity %q (%s): %s", e.Entity, e.Role, e.Message)
}

// Details surfaces structured fields for API error responses.
func (e *ValidationError) Details() map[string]interface{} {
	d := map[string]interface{}{"entity": e.Entity, "role": e.Role.String()}
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

func newShapeError(ent aggregation.DerivedEntity, field string) *ValidationError {
	return &ValidationError{
		Entity:  ent.ID,
		Role:    ent.Role,
		Field:   field,
		Message: "shape must not be empty",
	}
}
