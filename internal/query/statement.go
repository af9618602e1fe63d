package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
)

// Kind is the storage kind of a definition.
type Kind int

const (
	KindTable Kind = iota
	KindStream
)

func (k Kind) String() string {
	if k == KindStream {
		return "STREAM"
	}
	return "TABLE"
}

// ColumnDef is one column of a declaration-only statement.
type ColumnDef struct {
	Name string
	Type string // engine type, see SQLType
	Key  bool
}

// Option is one WITH (...) property. Value is rendered as-is.
type Option struct {
	Name  string
	Value string
}

// Quote renders a string option value.
func Quote(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

// Int renders an integer option value.
func Int(n int) string { return strconv.Itoa(n) }

// Statement is a create-if-not-exists definition. Query is empty for
// declaration-only statements, which carry Columns instead.
type Statement struct {
	Kind    Kind
	Name    string
	Columns []ColumnDef
	With    []Option
	Query   string
}

// IsDeclaration reports whether the statement declares an object over an
// existing topic instead of materializing a query.
func (s Statement) IsDeclaration() bool { return s.Query == "" }

func (s Statement) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE %s IF NOT EXISTS %s", s.Kind, s.Name)
	if s.IsDeclaration() && len(s.Columns) > 0 {
		cols := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = c.Name + " " + c.Type
			if c.Key {
				cols[i] += " KEY"
			}
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(cols, ", "))
	}
	if len(s.With) > 0 {
		opts := make([]string, len(s.With))
		for i, o := range s.With {
			opts[i] = o.Name + "=" + o.Value
		}
		fmt.Fprintf(&b, " WITH (%s)", strings.Join(opts, ", "))
	}
	if !s.IsDeclaration() {
		b.WriteString(" AS ")
		b.WriteString(s.Query)
	}
	b.WriteByte(';')
	return b.String()
}

// SQLType maps a column type to the engine's type name.
func SQLType(t string) string {
	switch t {
	case aggregation.TypeString:
		return "STRING"
	case aggregation.TypeInt:
		return "INT"
	case aggregation.TypeBigint:
		return "BIGINT"
	case aggregation.TypeDouble:
		return "DOUBLE"
	case aggregation.TypeDecimal:
		return "DECIMAL(38, 18)"
	case aggregation.TypeBoolean:
		return "BOOLEAN"
	case aggregation.TypeTimestamp:
		return "TIMESTAMP"
	}
	return "STRING"
}
