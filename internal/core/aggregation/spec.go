package aggregation

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

// ErrSpecNotFound is returned when a spec name is not loaded.
var ErrSpecNotFound = errors.New("aggregation spec not found")

// Measure is a value column computed by an operator over a source field.
type Measure struct {
	Column
	Op    string
	Field string // source column; defaults to Name, ignored for count
}

// Format holds the engine serialization settings for derived objects.
type Format struct {
	Key        string
	Value      string
	Partitions int
}

// Spec is one parsed aggregation declaration: a source entity rolled up
// into a target entity over a set of tumbling windows.
type Spec struct {
	Name    string
	Source  string // base stream the 1s anchor reads from
	Target  string // logical aggregate type, e.g. "Bar"
	Alias   string // explicit physical base name
	TimeKey string

	Keys    []Column
	Values  []Measure
	Windows []timeframe.Timeframe // ascending, excludes the 1s anchor

	Analysis   *ExpressionAnalysisResult
	BasedOn    *BasedOnSpec
	LiveInputs map[string]string // window token → finer window token it rolls from

	Prev1m    bool
	Heartbeat *timeframe.Timeframe
	Fill      string

	Format      Format
	Fingerprint string // SHA-256 of the raw YAML; empty for specs built in code
}

// BaseTopic returns the physical base name objects of this spec are named after.
func (s *Spec) BaseTopic() string {
	if s.Alias != "" {
		return ObjectName(s.Alias)
	}
	return ObjectName(s.Target)
}

// Grace returns the validated grace seconds for a window token.
func (s *Spec) Grace(token string) (int, bool) {
	if s.Analysis == nil {
		return 0, false
	}
	g, ok := s.Analysis.GracePerTimeframe[token]
	return g, ok
}

// BaseGrace returns the base grace used by the 1s anchor.
func (s *Spec) BaseGrace() int {
	if s.Analysis == nil || s.Analysis.GraceSeconds == nil {
		return 0
	}
	return *s.Analysis.GraceSeconds
}

// HasWindow reports whether token is one of the requested windows.
func (s *Spec) HasWindow(token string) bool {
	for _, w := range s.Windows {
		if w.Token() == token {
			return true
		}
	}
	return false
}

// ObjectName lowercases s and replaces anything outside [a-z0-9_] with '_'.
func ObjectName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

// rawSpec is the on-disk YAML shape.
type rawSpec struct {
	Name           string            `yaml:"name"`
	Source         string            `yaml:"source"`
	Target         string            `yaml:"target"`
	Alias          string            `yaml:"alias"`
	TimeKey        string            `yaml:"time_key"`
	Keys           []Column          `yaml:"keys"`
	Values         []rawMeasure      `yaml:"values"`
	Windows        []string          `yaml:"windows"`
	BaseUnit       string            `yaml:"base_unit"`
	Grace          *int              `yaml:"grace"`
	GraceOverrides map[string]int    `yaml:"grace_overrides"`
	BasedOn        *rawBasedOn       `yaml:"based_on"`
	LiveInputs     map[string]string `yaml:"live_inputs"`
	Prev1m         bool              `yaml:"prev_1m"`
	Heartbeat      string            `yaml:"heartbeat"`
	Fill           string            `yaml:"fill"`
	Format         struct {
		Key        string `yaml:"key"`
		Value      string `yaml:"value"`
		Partitions int    `yaml:"partitions"`
	} `yaml:"format"`
}

type rawMeasure struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
	Op       string `yaml:"op"`
	Field    string `yaml:"field"`
}

type rawBasedOn struct {
	Source         string   `yaml:"source"`
	JoinKeys       []string `yaml:"join_keys"`
	Open           string   `yaml:"open"`
	Close          string   `yaml:"close"`
	DayKey         string   `yaml:"day_key"`
	OpenInclusive  *bool    `yaml:"open_inclusive"`
	CloseInclusive *bool    `yaml:"close_inclusive"`
}

// ParseSpec parses and validates a single YAML aggregation spec.
func ParseSpec(data []byte) (*Spec, error) {
	var raw rawSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing spec: %w", err)
	}
	if raw.Name == "" {
		return nil, errors.New("spec name must not be empty")
	}
	spec, err := raw.build()
	if err != nil {
		return nil, err
	}
	spec.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))
	return spec, nil
}

func (raw *rawSpec) build() (*Spec, error) {
	if raw.Source == "" {
		return nil, fmt.Errorf("spec %q: source must not be empty", raw.Name)
	}
	if raw.Target == "" {
		return nil, fmt.Errorf("spec %q: target must not be empty", raw.Name)
	}
	if len(raw.Keys) == 0 {
		return nil, fmt.Errorf("spec %q: at least one key column is required", raw.Name)
	}

	spec := &Spec{
		Name:       raw.Name,
		Source:     raw.Source,
		Target:     raw.Target,
		Alias:      raw.Alias,
		TimeKey:    raw.TimeKey,
		Prev1m:     raw.Prev1m,
		Fill:       raw.Fill,
		LiveInputs: raw.LiveInputs,
		Format: Format{
			Key:        raw.Format.Key,
			Value:      raw.Format.Value,
			Partitions: raw.Format.Partitions,
		},
	}

	for _, k := range raw.Keys {
		if k.Name == "" {
			return nil, fmt.Errorf("spec %q: key column name must not be empty", raw.Name)
		}
		if k.Type == "" {
			k.Type = TypeString
		}
		if !ValidColumnType(k.Type) {
			return nil, fmt.Errorf("spec %q: key %q: unsupported type %q", raw.Name, k.Name, k.Type)
		}
		spec.Keys = append(spec.Keys, k)
	}

	for _, v := range raw.Values {
		if v.Name == "" {
			return nil, fmt.Errorf("spec %q: value column name must not be empty", raw.Name)
		}
		if !ValidOperator(v.Op) {
			return nil, fmt.Errorf("spec %q: value %q: unsupported operator %q", raw.Name, v.Name, v.Op)
		}
		m := Measure{
			Column: Column{Name: v.Name, Type: v.Type, Nullable: v.Nullable},
			Op:     v.Op,
			Field:  v.Field,
		}
		if m.Field == "" {
			m.Field = v.Name
		}
		if m.Type == "" {
			m.Type = TypeDouble
			if v.Op == OpCount {
				m.Type = TypeBigint
			}
		}
		if !ValidColumnType(m.Type) {
			return nil, fmt.Errorf("spec %q: value %q: unsupported type %q", raw.Name, v.Name, m.Type)
		}
		spec.Values = append(spec.Values, m)
	}
	if len(spec.Values) == 0 {
		return nil, fmt.Errorf("spec %q: at least one value column is required", raw.Name)
	}

	// windows are a set
	seen := make(map[string]struct{}, len(raw.Windows))
	for _, w := range raw.Windows {
		tf, err := timeframe.Parse(w)
		if err != nil {
			return nil, fmt.Errorf("spec %q: %w", raw.Name, err)
		}
		if tf == timeframe.OneSecond {
			return nil, fmt.Errorf("spec %q: the 1s window is always materialized as the final anchor", raw.Name)
		}
		if _, ok := seen[tf.Token()]; ok {
			continue
		}
		seen[tf.Token()] = struct{}{}
		spec.Windows = append(spec.Windows, tf)
	}
	timeframe.Sort(spec.Windows)

	analysis := &ExpressionAnalysisResult{
		Windows:           tokens(spec.Windows),
		GraceSeconds:      raw.Grace,
		GracePerTimeframe: make(map[string]int, len(raw.GraceOverrides)),
	}
	for k, v := range raw.GraceOverrides {
		analysis.GracePerTimeframe[k] = v
	}
	if raw.BaseUnit != "" {
		base := timeframe.TokenSeconds(raw.BaseUnit)
		analysis.BaseUnitSeconds = &base
	}
	if err := ValidateWindows(analysis); err != nil {
		return nil, fmt.Errorf("spec %q: %w", raw.Name, err)
	}
	spec.Analysis = analysis

	if raw.BasedOn != nil {
		b := DefaultBasedOn()
		b.Source = raw.BasedOn.Source
		b.JoinKeys = raw.BasedOn.JoinKeys
		b.OpenProp = raw.BasedOn.Open
		b.CloseProp = raw.BasedOn.Close
		b.DayKey = raw.BasedOn.DayKey
		if raw.BasedOn.OpenInclusive != nil {
			b.OpenInclusive = *raw.BasedOn.OpenInclusive
		}
		if raw.BasedOn.CloseInclusive != nil {
			b.CloseInclusive = *raw.BasedOn.CloseInclusive
		}
		if b.Source == "" {
			return nil, fmt.Errorf("spec %q: based_on needs a session source", raw.Name)
		}
		if (b.OpenProp == "") != (b.CloseProp == "") {
			return nil, fmt.Errorf("spec %q: based_on needs both open and close", raw.Name)
		}
		if b.OpenProp != "" && raw.TimeKey == "" {
			return nil, fmt.Errorf("spec %q: based_on bounds require time_key", raw.Name)
		}
		spec.BasedOn = &b
	}

	for coarse, fine := range spec.LiveInputs {
		if !spec.HasWindow(coarse) || !spec.HasWindow(fine) {
			return nil, fmt.Errorf("spec %q: live_inputs %s→%s must reference requested windows", raw.Name, coarse, fine)
		}
		cs, fs := timeframe.TokenSeconds(coarse), timeframe.TokenSeconds(fine)
		if fs >= cs || cs%fs != 0 {
			return nil, fmt.Errorf("spec %q: live_inputs %s must roll from a finer window that divides it, got %s", raw.Name, coarse, fine)
		}
	}

	if spec.Prev1m && !spec.HasWindow("1m") {
		return nil, fmt.Errorf("spec %q: prev_1m requires the 1m window", raw.Name)
	}

	if raw.Heartbeat != "" {
		hb, err := timeframe.Parse(raw.Heartbeat)
		if err != nil {
			return nil, fmt.Errorf("spec %q: heartbeat: %w", raw.Name, err)
		}
		if hb.Unit == timeframe.Second || !spec.HasWindow(hb.Token()) {
			return nil, fmt.Errorf("spec %q: heartbeat %s must be a requested window of a minute or more", raw.Name, hb)
		}
		spec.Heartbeat = &hb
	}
	if spec.Fill != "" {
		if spec.Heartbeat == nil {
			return nil, fmt.Errorf("spec %q: fill requires heartbeat", raw.Name)
		}
		if _, ok := FillPolicies[spec.Fill]; !ok {
			return nil, fmt.Errorf("spec %q: unknown fill policy %q", raw.Name, spec.Fill)
		}
	}
	return spec, nil
}

func tokens(tfs []timeframe.Timeframe) []string {
	out := make([]string, len(tfs))
	for i, tf := range tfs {
		out[i] = tf.Token()
	}
	return out
}

// SpecRepository defines the interface for loading aggregation specs.
type SpecRepository interface {
	// Get returns the spec with the given name, or ErrSpecNotFound.
	Get(ctx context.Context, name string) (*Spec, error)

	// List returns all loaded specs, optionally filtered by source entity.
	List(ctx context.Context, source string) ([]*Spec, error)

	// Specs returns all specs ordered by name.
	Specs() []*Spec
}

// FileSystemSpecRepository loads aggregation specs from *.yaml files in a directory.
// Each file contains exactly one spec at the top level. Specs are loaded once at
// startup and cached in memory.
type FileSystemSpecRepository struct {
	dir   string
	specs map[string]*Spec // keyed by Name
}

// NewFileSystemSpecRepository creates a new repository and eagerly loads all specs
// from dir. Returns an error if any spec file is malformed or invalid.
func NewFileSystemSpecRepository(dir string) (*FileSystemSpecRepository, error) {
	repo := &FileSystemSpecRepository{
		dir:   dir,
		specs: make(map[string]*Spec),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemSpecRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no spec directory: zero specs configured
	}
	if err != nil {
		return fmt.Errorf("aggregation spec dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("aggregation spec path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading aggregation spec dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading spec file %s: %w", path, err)
		}

		var probe struct {
			Name string `yaml:"name"`
		}
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return fmt.Errorf("parsing spec file %s: %w", path, err)
		}
		if probe.Name == "" {
			continue // skip empty / comment-only files
		}

		spec, err := ParseSpec(data)
		if err != nil {
			return fmt.Errorf("spec file %s: %w", path, err)
		}
		if _, exists := r.specs[spec.Name]; exists {
			return fmt.Errorf("spec %q: duplicate spec name (check multiple YAML files)", spec.Name)
		}
		r.specs[spec.Name] = spec
	}
	return nil
}

// Get returns the spec with the given name.
func (r *FileSystemSpecRepository) Get(_ context.Context, name string) (*Spec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSpecNotFound, name)
	}
	return spec, nil
}

// List returns all loaded specs, optionally filtered by source entity.
func (r *FileSystemSpecRepository) List(_ context.Context, source string) ([]*Spec, error) {
	var out []*Spec
	for _, spec := range r.Specs() {
		if source != "" && spec.Source != source {
			continue
		}
		out = append(out, spec)
	}
	return out, nil
}

// Specs returns all specs ordered by name.
func (r *FileSystemSpecRepository) Specs() []*Spec {
	specs := make([]*Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
