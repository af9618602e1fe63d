package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/query"
)

// Table cache backends for rollup.table_cache.
const (
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

// Config represents the top-level application config plus the loaded aggregation specs.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Engine    EngineConfig    `koanf:"engine"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Redis     RedisConfig     `koanf:"redis"`
	Rollup    RollupConfig    `koanf:"rollup"`
	Heartbeat HeartbeatConfig `koanf:"heartbeat"`

	// Specs is populated by Load after parsing spec files.
	Specs []*aggregation.Spec `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type EngineConfig struct {
	URL        string           `koanf:"url"`
	Timeout    time.Duration    `koanf:"timeout"`
	Properties []EngineProperty `koanf:"properties"` // streamsProperties sent with every statement
}

// EngineProperty is a name/value pair; names carry dots so they are kept out of the key path.
type EngineProperty struct {
	Name  string `koanf:"name"`
	Value string `koanf:"value"`
}

type KafkaConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Brokers  []string      `koanf:"brokers"`
	ClientID string        `koanf:"client_id"`
	Timeout  time.Duration `koanf:"timeout"`
}

type RedisConfig struct {
	Addrs    []string `koanf:"addrs"`
	Username string   `koanf:"username"`
	Password string   `koanf:"password"`
	DB       int      `koanf:"db"`
}

type RollupConfig struct {
	SpecDir         string `koanf:"spec_dir"`
	RequireSpecs    bool   `koanf:"require_specs"`
	NamespaceSuffix string `koanf:"namespace_suffix"`
	EmptyJoin       string `koanf:"empty_join"` // omit | always_true
	KeyFormat       string `koanf:"key_format"`
	ValueFormat     string `koanf:"value_format"`
	Partitions      int    `koanf:"partitions"`
	TableCache      string `koanf:"table_cache"` // postgres | redis
	Concurrency     int    `koanf:"concurrency"`
}

type HeartbeatConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	Group    string        `koanf:"group"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}

	if strings.TrimSpace(c.Engine.URL) == "" {
		return fmt.Errorf("engine.url is required")
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be > 0")
	}
	for i, p := range c.Engine.Properties {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("engine.properties[%d].name is required", i)
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	if strings.TrimSpace(c.Rollup.SpecDir) == "" {
		return fmt.Errorf("rollup.spec_dir is required")
	}
	if c.Rollup.EmptyJoin != query.EmptyJoinOmit && c.Rollup.EmptyJoin != query.EmptyJoinAlwaysTrue {
		return fmt.Errorf("invalid rollup.empty_join %q (must be %s or %s)",
			c.Rollup.EmptyJoin, query.EmptyJoinOmit, query.EmptyJoinAlwaysTrue)
	}
	if c.Rollup.Partitions <= 0 {
		return fmt.Errorf("rollup.partitions must be > 0")
	}
	switch c.Rollup.TableCache {
	case CachePostgres:
	case CacheRedis:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required when rollup.table_cache is redis")
		}
	default:
		return fmt.Errorf("unsupported rollup.table_cache %q", c.Rollup.TableCache)
	}
	if c.Rollup.Concurrency <= 0 {
		return fmt.Errorf("rollup.concurrency must be > 0")
	}

	if c.Heartbeat.Enabled {
		if c.Heartbeat.Interval <= 0 {
			return fmt.Errorf("heartbeat.interval must be > 0")
		}
		if strings.TrimSpace(c.Heartbeat.Group) == "" {
			return fmt.Errorf("heartbeat.group is required")
		}
		// heartbeats only reach the fill tables through the engine's topics
		if !c.Kafka.Enabled {
			return fmt.Errorf("kafka.enabled is required when heartbeat is enabled")
		}
	}

	return nil
}

// RequireDatabase reports an error when a command needs Postgres and no DSN is set.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}

// Load parses config from file + env, validates it, then loads the aggregation specs.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.mode":             "release",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"engine.url":              "http://localhost:8088",
		"engine.timeout":          "30s",
		"kafka.enabled":           false,
		"kafka.client_id":         "aevon-rollup",
		"kafka.timeout":           "10s",
		"redis.db":                0,
		"rollup.spec_dir":         "./config/rollups",
		"rollup.require_specs":    true,
		"rollup.namespace_suffix": "",
		"rollup.empty_join":       query.EmptyJoinOmit,
		"rollup.key_format":       "JSON",
		"rollup.value_format":     "JSON",
		"rollup.partitions":       1,
		"rollup.table_cache":      CachePostgres,
		"rollup.concurrency":      4,
		"heartbeat.enabled":       false,
		"heartbeat.interval":      "1m",
		"heartbeat.group":         "aevon-rollup-heartbeat",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("ROLLUP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "ROLLUP_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := aggregation.NewFileSystemSpecRepository(cfg.Rollup.SpecDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load aggregation specs: %w", err)
	}
	specs := repo.Specs()
	if cfg.Rollup.RequireSpecs && len(specs) == 0 {
		return nil, fmt.Errorf("no aggregation specs found in %q", cfg.Rollup.SpecDir)
	}
	for _, spec := range specs {
		cfg.Rollup.applyFormat(spec)
	}
	cfg.Specs = specs

	return &cfg, nil
}

// applyFormat fills the format fields a spec left unset.
func (c RollupConfig) applyFormat(spec *aggregation.Spec) {
	if spec.Format.Key == "" {
		spec.Format.Key = c.KeyFormat
	}
	if spec.Format.Value == "" {
		spec.Format.Value = c.ValueFormat
	}
	if spec.Format.Partitions <= 0 {
		spec.Format.Partitions = c.Partitions
	}
}

// Spec returns the loaded spec with the given name.
func (c *Config) Spec(name string) (*aggregation.Spec, error) {
	for _, spec := range c.Specs {
		if spec.Name == name {
			return spec, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", aggregation.ErrSpecNotFound, name)
}
