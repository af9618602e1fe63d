// Package model turns derived entities into physical object descriptors.
package model

import (
	"strings"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
)

// DefaultNamespaceSuffix is appended to the stripped base name.
const DefaultNamespaceSuffix = "_rollup"

// PhysicalEntity is a derived entity with its physical identity resolved.
// Values are created once per compile pass and never modified.
type PhysicalEntity struct {
	aggregation.DerivedEntity

	Base        string // physical base name with the role suffix stripped
	Namespace   string // Base + namespace suffix; empty for metadata-only entities
	Topic       string // physical object name
	ForceStream bool   // stored as a stream regardless of shape
	Schema      string // proto3 rendering of the key and value shapes
}

// HasNamespace reports whether the entity maps to a physical object.
func (p PhysicalEntity) HasNamespace() bool { return p.Namespace != "" }

// Adapter converts derived entities into physical descriptors.
type Adapter struct {
	NamespaceSuffix string
}

// NewAdapter returns an adapter using suffix, or DefaultNamespaceSuffix when empty.
func NewAdapter(suffix string) *Adapter {
	if suffix == "" {
		suffix = DefaultNamespaceSuffix
	}
	return &Adapter{NamespaceSuffix: suffix}
}

// Adapt converts entities with the default namespace suffix.
func Adapt(entities []aggregation.DerivedEntity) ([]PhysicalEntity, error) {
	return NewAdapter("").Adapt(entities)
}

// Adapt validates each entity and returns one descriptor per entity, in order.
// Key shapes must be non-empty for every role; value shapes may be empty only
// for heartbeat entities.
func (a *Adapter) Adapt(entities []aggregation.DerivedEntity) ([]PhysicalEntity, error) {
	out := make([]PhysicalEntity, 0, len(entities))
	for _, ent := range entities {
		if len(ent.KeyShape) == 0 {
			return nil, newShapeError(ent, "key")
		}
		if len(ent.ValueShape) == 0 && ent.Role != aggregation.RoleHb {
			return nil, newShapeError(ent, "value")
		}

		pe := PhysicalEntity{
			DerivedEntity: copyEntity(ent),
			ForceStream:   ent.Role == aggregation.RoleHb,
		}

		name := strings.TrimSpace(ent.TopicHint)
		if name == "" {
			name = strings.TrimSpace(ent.ID)
		}
		if name != "" {
			pe.Topic = aggregation.ObjectName(name)
			pe.Base = StripRoleSuffix(pe.Topic, ent)
			pe.Namespace = pe.Base + a.NamespaceSuffix
		}
		pe.Schema = RenderSchema(pe)
		out = append(out, pe)
	}
	return out, nil
}

// RoleSuffix returns the physical name suffix the role appends to a base name.
func RoleSuffix(ent aggregation.DerivedEntity) string {
	tok := ent.Timeframe.Token()
	switch ent.Role {
	case aggregation.RoleLive:
		return "_" + tok + "_live"
	case aggregation.RoleFinal:
		return "_" + tok + "_final"
	case aggregation.RoleFinal1s:
		return "_1s_final"
	case aggregation.RoleFinal1sStream:
		return "_1s_final_s"
	case aggregation.RolePrev1m:
		return "_prev_1m"
	case aggregation.RoleHb:
		return "_hb_" + tok
	case aggregation.RoleFill:
		return "_" + tok + "_fill"
	}
	return ""
}

// StripRoleSuffix removes the role suffix from name, if present.
func StripRoleSuffix(name string, ent aggregation.DerivedEntity) string {
	return strings.TrimSuffix(name, RoleSuffix(ent))
}

// PhysicalName returns the object name for a role on base.
func PhysicalName(base string, ent aggregation.DerivedEntity) string {
	return base + RoleSuffix(ent)
}

func copyEntity(ent aggregation.DerivedEntity) aggregation.DerivedEntity {
	out := ent
	out.KeyShape = append([]aggregation.Column(nil), ent.KeyShape...)
	out.ValueShape = append([]aggregation.Column(nil), ent.ValueShape...)
	out.BasedOn.JoinKeys = append([]string(nil), ent.BasedOn.JoinKeys...)
	return out
}
