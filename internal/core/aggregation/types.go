package aggregation

import (
	"fmt"

	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

// Role is the structural category of a derived entity.
type Role int

const (
	RoleLive Role = iota
	RoleFinal
	RoleFinal1s
	RoleFinal1sStream
	RolePrev1m
	RoleFill
	RoleHb
)

// Roles lists every role in emission rank order.
var Roles = []Role{RoleFinal1s, RoleFinal1sStream, RoleLive, RoleFinal, RolePrev1m, RoleHb, RoleFill}

func (r Role) String() string {
	switch r {
	case RoleLive:
		return "live"
	case RoleFinal:
		return "final"
	case RoleFinal1s:
		return "final_1s"
	case RoleFinal1sStream:
		return "final_1s_stream"
	case RolePrev1m:
		return "prev_1m"
	case RoleFill:
		return "fill"
	case RoleHb:
		return "hb"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// EmitMode is the emit directive of a windowed query.
type EmitMode string

const (
	EmitNone    EmitMode = ""
	EmitChanges EmitMode = "CHANGES"
	EmitFinal   EmitMode = "FINAL"
)

// Traits describes how a role windows and emits.
type Traits struct {
	Windowed bool
	Emit     EmitMode
}

// Traits returns the fixed windowing/emit behavior of the role.
func (r Role) Traits() Traits {
	switch r {
	case RoleLive:
		return Traits{Windowed: true, Emit: EmitChanges}
	case RoleFinal, RoleFinal1s:
		return Traits{Windowed: true, Emit: EmitFinal}
	case RoleFinal1sStream, RolePrev1m:
		return Traits{}
	case RoleFill, RoleHb:
		return Traits{Windowed: true, Emit: EmitChanges}
	}
	return Traits{}
}

// Column types accepted in key and value shapes.
const (
	TypeString    = "string"
	TypeInt       = "int"
	TypeBigint    = "bigint"
	TypeDouble    = "double"
	TypeDecimal   = "decimal"
	TypeBoolean   = "boolean"
	TypeTimestamp = "timestamp"
)

// ValidColumnType reports whether t is a supported column type.
func ValidColumnType(t string) bool {
	switch t {
	case TypeString, TypeInt, TypeBigint, TypeDouble, TypeDecimal, TypeBoolean, TypeTimestamp:
		return true
	}
	return false
}

// Column is one named, typed member of a key or value shape.
type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// BasedOnSpec aligns source rows with a session row (open/close bounds).
type BasedOnSpec struct {
	Source         string   // session object name
	JoinKeys       []string // identity columns shared by source and session rows
	OpenProp       string
	CloseProp      string
	DayKey         string // buckets sessions by calendar day
	OpenInclusive  bool
	CloseInclusive bool
}

// DefaultBasedOn returns the default bound inclusivity: open inclusive,
// close exclusive.
func DefaultBasedOn() BasedOnSpec {
	return BasedOnSpec{OpenInclusive: true}
}

// IsZero reports whether no session alignment is configured.
func (b BasedOnSpec) IsZero() bool {
	return b.Source == "" && len(b.JoinKeys) == 0 && b.OpenProp == "" && b.CloseProp == ""
}

// DerivedEntity is one object implied by an aggregation spec, before it is
// given a physical identity.
type DerivedEntity struct {
	ID           string
	KeyShape     []Column
	ValueShape   []Column
	Role         Role
	Timeframe    timeframe.Timeframe
	GraceSeconds int
	BasedOn      BasedOnSpec
	InputHint    string // explicit upstream object name
	TopicHint    string // explicit physical object base name
}
