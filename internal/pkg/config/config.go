package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Clustering ClusteringConfig `mapstructure:"clustering"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
	// ClusterTTL is how long a cluster response stays cached, in seconds.
	ClusterTTL int `mapstructure:"cluster_ttl"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type SimulationConfig struct {
	Enabled                 bool    `mapstructure:"enabled"`
	PeriodMS                int     `mapstructure:"period_ms"`
	Seed                    uint64  `mapstructure:"seed"` // 0 picks a time-based seed
	FavoritesRefreshSeconds int     `mapstructure:"favorites_refresh_seconds"`
	SyntheticLots           int     `mapstructure:"synthetic_lots"`
	CenterLat               float64 `mapstructure:"center_lat"`
	CenterLon               float64 `mapstructure:"center_lon"`
	RadiusKm                float64 `mapstructure:"radius_km"`
}

// Period returns the tick interval.
func (s SimulationConfig) Period() time.Duration {
	return time.Duration(s.PeriodMS) * time.Millisecond
}

// FavoritesRefresh returns how often favorites are reloaded.
func (s SimulationConfig) FavoritesRefresh() time.Duration {
	return time.Duration(s.FavoritesRefreshSeconds) * time.Second
}

type ClusteringConfig struct {
	RadiusKm      float64 `mapstructure:"radius_km"`
	PointZoom     int     `mapstructure:"point_zoom"`
	GridThreshold int     `mapstructure:"grid_threshold"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PARKWATCH_DATABASE_HOST → database.host
	v.SetEnvPrefix("PARKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "parkwatch")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "parkwatch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.cluster_ttl", 30)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "availability")
	v.SetDefault("simulation.enabled", true)
	v.SetDefault("simulation.period_ms", 5000)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.favorites_refresh_seconds", 30)
	v.SetDefault("simulation.synthetic_lots", 0)
	v.SetDefault("simulation.center_lat", 43.263)
	v.SetDefault("simulation.center_lon", -2.935)
	v.SetDefault("simulation.radius_km", 3.0)
	v.SetDefault("clustering.radius_km", 1.11)
	v.SetDefault("clustering.point_zoom", 13)
	v.SetDefault("clustering.grid_threshold", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Valkey.ClusterTTL < 0 {
		errs = append(errs, "valkey.cluster_ttl must not be negative")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Simulation.PeriodMS <= 0 {
		errs = append(errs, fmt.Sprintf("simulation.period_ms must be positive, got %d", c.Simulation.PeriodMS))
	}
	if c.Simulation.FavoritesRefreshSeconds <= 0 {
		errs = append(errs, "simulation.favorites_refresh_seconds must be positive")
	}
	if c.Simulation.SyntheticLots < 0 {
		errs = append(errs, "simulation.synthetic_lots must not be negative")
	}
	if c.Simulation.CenterLat < -90 || c.Simulation.CenterLat > 90 {
		errs = append(errs, fmt.Sprintf("simulation.center_lat must be in [-90,90], got %g", c.Simulation.CenterLat))
	}
	if c.Simulation.CenterLon < -180 || c.Simulation.CenterLon > 180 {
		errs = append(errs, fmt.Sprintf("simulation.center_lon must be in [-180,180], got %g", c.Simulation.CenterLon))
	}
	if c.Clustering.RadiusKm <= 0 {
		errs = append(errs, fmt.Sprintf("clustering.radius_km must be positive, got %g", c.Clustering.RadiusKm))
	}
	if c.Clustering.PointZoom < 0 || c.Clustering.PointZoom > 20 {
		errs = append(errs, fmt.Sprintf("clustering.point_zoom must be 0-20, got %d", c.Clustering.PointZoom))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
