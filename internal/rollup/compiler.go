// Package rollup compiles aggregation specs into ordered definition plans and
// applies them through an Executor.
package rollup

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
	"github.com/aevon-lab/aevon-rollup/internal/model"
	"github.com/aevon-lab/aevon-rollup/internal/query"
)

const (
	defaultFormat     = "JSON"
	defaultPartitions = 1
	metadataCategory  = "rollup"
)

// Compiler turns aggregation specs into plans. It holds no mutable state and
// is safe for concurrent use.
type Compiler struct {
	adapter   *model.Adapter
	emptyJoin string
	now       func() time.Time
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithNamespaceSuffix sets the suffix appended to physical base names.
func WithNamespaceSuffix(suffix string) CompilerOption {
	return func(c *Compiler) { c.adapter = model.NewAdapter(suffix) }
}

// WithEmptyJoin sets how a query without session alignment is rendered:
// query.EmptyJoinOmit or query.EmptyJoinAlwaysTrue.
func WithEmptyJoin(mode string) CompilerOption {
	return func(c *Compiler) { c.emptyJoin = mode }
}

// WithClock overrides the clock stamped into query metadata.
func WithClock(now func() time.Time) CompilerOption {
	return func(c *Compiler) { c.now = now }
}

// NewCompiler creates a Compiler.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		adapter:   model.NewAdapter(""),
		emptyJoin: query.EmptyJoinOmit,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles spec with a default Compiler.
func Compile(ctx context.Context, spec *aggregation.Spec) (*Plan, error) {
	return NewCompiler().Compile(ctx, spec)
}

// draft is a derived entity plus the objects it reads.
type draft struct {
	entity   aggregation.DerivedEntity
	upstream []string
}

// Compile enumerates every derived entity of spec in emission order, adapts
// them to physical descriptors, renders their definitions and verifies that
// each definition only reads objects declared before it.
func (c *Compiler) Compile(ctx context.Context, spec *aggregation.Spec) (*Plan, error) {
	if spec == nil {
		return nil, fmt.Errorf("compile: nil spec")
	}

	drafts := c.enumerate(spec)
	entities := make([]aggregation.DerivedEntity, len(drafts))
	for i, d := range drafts {
		entities[i] = d.entity
	}

	physical, err := c.adapter.Adapt(entities)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", spec.Name, err)
	}

	plan := &Plan{Spec: spec, Steps: make([]Step, 0, len(physical))}
	for i, pe := range physical {
		if _, err := model.CompileSchema(ctx, pe); err != nil {
			return nil, fmt.Errorf("compile %q: %w", spec.Name, err)
		}
		stmt, err := c.statement(spec, pe)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", spec.Name, err)
		}
		plan.Steps = append(plan.Steps, Step{
			Order:     i + 1,
			Entity:    pe,
			Statement: stmt,
			Upstream:  drafts[i].upstream,
		})
	}

	if err := plan.Verify(); err != nil {
		return nil, fmt.Errorf("compile %q: %w", spec.Name, err)
	}
	return plan, nil
}

func (c *Compiler) enumerate(spec *aggregation.Spec) []draft {
	base := spec.BaseTopic()
	keys := keyShape(spec)
	values := valueShape(spec)

	var basedOn aggregation.BasedOnSpec
	if spec.BasedOn != nil {
		basedOn = *spec.BasedOn
	}

	newEntity := func(role aggregation.Role, tf timeframe.Timeframe, grace int, input string) aggregation.DerivedEntity {
		ent := aggregation.DerivedEntity{
			KeyShape:     keys,
			ValueShape:   values,
			Role:         role,
			Timeframe:    tf,
			GraceSeconds: grace,
			InputHint:    input,
		}
		ent.ID = model.PhysicalName(base, ent)
		return ent
	}
	name := func(role aggregation.Role, tf timeframe.Timeframe) string {
		return model.PhysicalName(base, aggregation.DerivedEntity{Role: role, Timeframe: tf})
	}

	source := aggregation.ObjectName(spec.Source)
	final1s := name(aggregation.RoleFinal1s, timeframe.OneSecond)
	stream1s := name(aggregation.RoleFinal1sStream, timeframe.OneSecond)

	anchor := newEntity(aggregation.RoleFinal1s, timeframe.OneSecond, spec.BaseGrace(), source)
	anchor.BasedOn = basedOn
	anchorUp := []string{source}
	if basedOn.Source != "" {
		anchorUp = append(anchorUp, aggregation.ObjectName(basedOn.Source))
	}

	out := []draft{
		{entity: anchor, upstream: anchorUp},
		{entity: newEntity(aggregation.RoleFinal1sStream, timeframe.OneSecond, spec.BaseGrace(), final1s), upstream: []string{final1s}},
	}

	for _, w := range spec.Windows {
		grace, _ := spec.Grace(w.Token())

		input := stream1s
		if fine, ok := spec.LiveInputs[w.Token()]; ok {
			input = base + "_" + fine + "_live"
		}
		live := newEntity(aggregation.RoleLive, w, grace, input)
		final := newEntity(aggregation.RoleFinal, w, grace, live.ID)
		out = append(out,
			draft{entity: live, upstream: []string{input}},
			draft{entity: final, upstream: []string{live.ID}},
		)
	}

	if spec.Prev1m {
		minute := timeframe.Minutes(1)
		input := name(aggregation.RoleFinal, minute)
		prev := newEntity(aggregation.RolePrev1m, minute, 0, input)
		prev.ValueShape = withWindowStart(values)
		out = append(out, draft{entity: prev, upstream: []string{input}})
	}

	if spec.Heartbeat != nil {
		tf := *spec.Heartbeat
		grace, _ := spec.Grace(tf.Token())

		hb := newEntity(aggregation.RoleHb, tf, grace, "")
		hb.ValueShape = withWindowStart(nullable(values))
		out = append(out, draft{entity: hb})

		if spec.Fill != "" {
			fill := newEntity(aggregation.RoleFill, tf, grace, hb.ID)
			out = append(out, draft{entity: fill, upstream: []string{hb.ID}})
		}
	}
	return out
}

func (c *Compiler) statement(spec *aggregation.Spec, pe model.PhysicalEntity) (query.Statement, error) {
	stmt := query.Statement{
		Kind: query.KindTable,
		Name: pe.Topic,
		With: c.options(spec, pe.Topic),
	}
	if pe.ForceStream {
		stmt.Kind = query.KindStream
	}

	keys := columnNames(pe.KeyShape)
	values := measureNames(spec)
	md := c.metadata(pe)

	var err error
	switch pe.Role {
	case aggregation.RoleFinal1s:
		md = md.WithBaseObject(pe.InputHint).
			WithProperty(query.PropSelect, anchorSelect(spec)).
			WithProperty(query.PropGroupBy, anchorGroupBy(spec))
		if b := pe.BasedOn; !b.IsZero() {
			md = md.WithProperty(query.PropSessionSource, aggregation.ObjectName(b.Source)).
				WithProperty(query.PropJoinKeys, strings.Join(b.JoinKeys, ",")).
				WithProperty(query.PropOpenProp, b.OpenProp).
				WithProperty(query.PropCloseProp, b.CloseProp).
				WithProperty(query.PropTimeKey, spec.TimeKey).
				WithProperty(query.PropOpenInclusive, strconv.FormatBool(b.OpenInclusive)).
				WithProperty(query.PropCloseInclusive, strconv.FormatBool(b.CloseInclusive))
		}
		stmt.Query, err = query.Build(pe.Role, pe.Timeframe.Token(), md)

	case aggregation.RoleFinal1sStream:
		stmt.Kind = query.KindStream
		stmt.Columns = declare(pe)
		stmt.With = append(c.options(spec, pe.InputHint),
			query.Option{Name: "WINDOW_TYPE", Value: query.Quote("TUMBLING")},
			query.Option{Name: "WINDOW_SIZE", Value: query.Quote(timeframe.OneSecond.Interval())},
		)

	case aggregation.RoleLive:
		md = md.WithProperty(query.InputKey(pe.Timeframe.Token(), "Live"), pe.InputHint).
			WithProperty(query.PropSelect, rollupSelect(spec, keys)).
			WithProperty(query.PropGroupBy, qualified(keys))
		stmt.Query, err = query.Build(pe.Role, pe.Timeframe.Token(), md)

	case aggregation.RoleFinal:
		md = md.WithProperty(query.InputKey(pe.Timeframe.Token(), "Final"), pe.InputHint).
			WithProperty(query.PropSelect, latestSelect(keys, values)).
			WithProperty(query.PropGroupBy, qualified(keys))
		stmt.Query, err = query.Build(pe.Role, pe.Timeframe.Token(), md)

	case aggregation.RolePrev1m:
		stmt.Query = query.BuildPrevious(pe.InputHint, keys, values, pe.Timeframe)

	case aggregation.RoleHb:
		stmt.Columns = declare(pe)

	case aggregation.RoleFill:
		md = md.WithBaseObject(pe.InputHint).
			WithProperty(query.PropSelect, latestSelect(keys, values)).
			WithProperty(query.PropGroupBy, qualified(keys))
		stmt.Query, err = query.Build(pe.Role, pe.Timeframe.Token(), md)

	default:
		err = fmt.Errorf("no definition for role %s", pe.Role)
	}
	if err != nil {
		return query.Statement{}, err
	}
	return stmt, nil
}

func (c *Compiler) metadata(pe model.PhysicalEntity) query.Metadata {
	md := query.NewMetadata(metadataCategory, c.now()).
		WithProperty(query.PropEmptyJoin, c.emptyJoin)
	if pe.Role.Traits().Windowed {
		md = md.WithProperty(query.GraceKey(pe.Timeframe.Token()), strconv.Itoa(pe.GraceSeconds))
	}
	return md
}

func (c *Compiler) options(spec *aggregation.Spec, topic string) []query.Option {
	keyFormat := spec.Format.Key
	if keyFormat == "" {
		keyFormat = defaultFormat
	}
	valueFormat := spec.Format.Value
	if valueFormat == "" {
		valueFormat = defaultFormat
	}
	partitions := spec.Format.Partitions
	if partitions <= 0 {
		partitions = defaultPartitions
	}
	return []query.Option{
		{Name: "KAFKA_TOPIC", Value: query.Quote(topic)},
		{Name: "KEY_FORMAT", Value: query.Quote(strings.ToUpper(keyFormat))},
		{Name: "VALUE_FORMAT", Value: query.Quote(strings.ToUpper(valueFormat))},
		{Name: "PARTITIONS", Value: query.Int(partitions)},
	}
}

func keyShape(spec *aggregation.Spec) []aggregation.Column {
	keys := append([]aggregation.Column(nil), spec.Keys...)
	if spec.BasedOn != nil && spec.BasedOn.DayKey != "" {
		keys = append(keys, aggregation.Column{Name: spec.BasedOn.DayKey, Type: aggregation.TypeString})
	}
	return keys
}

func valueShape(spec *aggregation.Spec) []aggregation.Column {
	out := make([]aggregation.Column, len(spec.Values))
	for i, m := range spec.Values {
		out[i] = m.Column
	}
	return out
}

func withWindowStart(cols []aggregation.Column) []aggregation.Column {
	out := []aggregation.Column{{Name: aggregation.WindowStartField, Type: aggregation.TypeBigint}}
	return append(out, cols...)
}

func nullable(cols []aggregation.Column) []aggregation.Column {
	out := make([]aggregation.Column, len(cols))
	for i, c := range cols {
		c.Nullable = true
		out[i] = c
	}
	return out
}

func declare(pe model.PhysicalEntity) []query.ColumnDef {
	out := make([]query.ColumnDef, 0, len(pe.KeyShape)+len(pe.ValueShape))
	for _, k := range pe.KeyShape {
		out = append(out, query.ColumnDef{Name: k.Name, Type: query.SQLType(k.Type), Key: true})
	}
	for _, v := range pe.ValueShape {
		out = append(out, query.ColumnDef{Name: v.Name, Type: query.SQLType(v.Type)})
	}
	return out
}

// anchorSelect projects the source keys (and the session day key) and
// aggregates raw source fields.
func anchorSelect(spec *aggregation.Spec) string {
	var cols []string
	for _, k := range spec.Keys {
		cols = append(cols, fmt.Sprintf("%s.%s AS %s", query.RowAlias, k.Name, k.Name))
	}
	if spec.BasedOn != nil && spec.BasedOn.DayKey != "" {
		day := spec.BasedOn.DayKey
		cols = append(cols, fmt.Sprintf("%s.%s AS %s", query.SessionAlias, day, day))
	}
	for _, m := range spec.Values {
		agg := aggregation.Operators[m.Op]
		cols = append(cols, fmt.Sprintf("%s AS %s", agg.Expr(query.RowAlias+"."+m.Field), m.Name))
	}
	return strings.Join(cols, ", ")
}

func anchorGroupBy(spec *aggregation.Spec) string {
	cols := make([]string, 0, len(spec.Keys)+1)
	for _, k := range spec.Keys {
		cols = append(cols, query.RowAlias+"."+k.Name)
	}
	if spec.BasedOn != nil && spec.BasedOn.DayKey != "" {
		cols = append(cols, query.SessionAlias+"."+spec.BasedOn.DayKey)
	}
	return strings.Join(cols, ", ")
}

// rollupSelect re-aggregates already aggregated columns at a coarser grain.
func rollupSelect(spec *aggregation.Spec, keys []string) string {
	cols := keyProjection(keys)
	for _, m := range spec.Values {
		agg := aggregation.Operators[m.Op]
		cols = append(cols, fmt.Sprintf("%s AS %s", agg.Rollup(query.RowAlias+"."+m.Name), m.Name))
	}
	return strings.Join(cols, ", ")
}

// latestSelect keeps the latest value of each column within the window.
func latestSelect(keys, values []string) string {
	cols := keyProjection(keys)
	for _, v := range values {
		cols = append(cols, fmt.Sprintf("LATEST_BY_OFFSET(%s.%s) AS %s", query.RowAlias, v, v))
	}
	return strings.Join(cols, ", ")
}

func keyProjection(keys []string) []string {
	cols := make([]string, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, fmt.Sprintf("%s.%s AS %s", query.RowAlias, k, k))
	}
	return cols
}

func qualified(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = query.RowAlias + "." + c
	}
	return strings.Join(out, ", ")
}

func columnNames(cols []aggregation.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func measureNames(spec *aggregation.Spec) []string {
	out := make([]string, len(spec.Values))
	for i, m := range spec.Values {
		out[i] = m.Name
	}
	return out
}
