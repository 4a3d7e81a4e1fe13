package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lorawan-server/lorawan-concentratord/internal/jitqueue"
	"github.com/lorawan-server/lorawan-concentratord/internal/validation"
	"github.com/lorawan-server/lorawan-concentratord/pkg/lorawan"
)

// Config represents the concentratord configuration
type Config struct {
	Concentrator ConcentratorConfig `yaml:"concentrator"`
	JITQueue     JITQueueConfig     `yaml:"jit_queue"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Commands     CommandsConfig     `yaml:"commands"`
	NATS         NATSConfig         `yaml:"nats"`
	Stats        StatsConfig        `yaml:"stats"`
	Database     DatabaseConfig     `yaml:"database"`
	API          APIConfig          `yaml:"api"`
	JWT          JWTConfig          `yaml:"jwt"`
	Log          LogConfig          `yaml:"log"`
}

// ConcentratorConfig describes the radio hardware
type ConcentratorConfig struct {
	GatewayID   string        `yaml:"gateway_id" validate:"required,len=16,hex"`
	Model       string        `yaml:"model"`
	AntennaGain int8          `yaml:"antenna_gain"` // dBi, subtracted from the requested EIRP
	Radios      []RadioConfig `yaml:"radios" validate:"min=1"`
	// counter value the simulated concentrator starts at
	CounterOffset uint32 `yaml:"counter_offset"`
}

// RadioConfig is the TX frequency range of one RF chain
type RadioConfig struct {
	TxFreqMin uint32 `yaml:"tx_freq_min" validate:"required"`
	TxFreqMax uint32 `yaml:"tx_freq_max" validate:"required"`
}

// JITQueueConfig represents the just-in-time queue limits
type JITQueueConfig struct {
	Capacity          int           `yaml:"capacity" validate:"min=1,max=1024"`
	TxStartDelay      time.Duration `yaml:"tx_start_delay"`
	TxMarginDelay     time.Duration `yaml:"tx_margin_delay"`
	TxJITDelay        time.Duration `yaml:"tx_jit_delay"`
	TxMaxAdvanceDelay time.Duration `yaml:"tx_max_advance_delay" validate:"min=1s"`
	BeaconPeriod      time.Duration `yaml:"beacon_period"`
	BeaconOffset      uint32        `yaml:"beacon_offset"` // counter value of a beacon
	BeaconGuard       time.Duration `yaml:"beacon_guard"`
	BeaconReserved    time.Duration `yaml:"beacon_reserved"`
}

// SchedulerConfig represents the JIT loop configuration
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=1ms"`
}

// CommandsConfig represents the command transport configuration
type CommandsConfig struct {
	SubjectPrefix string        `yaml:"subject_prefix" validate:"required"`
	ReadTimeout   time.Duration `yaml:"read_timeout" validate:"min=1ms"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url" validate:"required"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// StatsConfig represents the statistics reporter configuration
type StatsConfig struct {
	Interval time.Duration `yaml:"interval" validate:"min=1s"`
}

// DatabaseConfig represents database configuration. An empty DSN disables
// persistence.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// APIConfig represents the status API configuration. Port 0 disables it.
type APIConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port" validate:"min=0,max=65535"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// JWTConfig represents JWT configuration. An empty secret disables
// authentication of the status API.
type JWTConfig struct {
	Secret         string        `yaml:"secret"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn error fatal"`
	Format     string `yaml:"format" validate:"oneof=console json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used for every value the file leaves out
func Default() Config {
	q := jitqueue.DefaultConfig()

	return Config{
		Concentrator: ConcentratorConfig{
			Model: "simulator",
		},
		JITQueue: JITQueueConfig{
			Capacity:          q.Capacity,
			TxStartDelay:      q.TxStartDelay,
			TxMarginDelay:     q.TxMarginDelay,
			TxJITDelay:        q.TxJITDelay,
			TxMaxAdvanceDelay: q.TxMaxAdvanceDelay,
			BeaconGuard:       q.BeaconGuard,
			BeaconReserved:    q.BeaconReserved,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 10 * time.Millisecond,
		},
		Commands: CommandsConfig{
			SubjectPrefix: "concentratord",
			ReadTimeout:   100 * time.Millisecond,
		},
		NATS: NATSConfig{
			URL:               "nats://localhost:4222",
			MaxReconnects:     -1,
			ReconnectInterval: 2 * time.Second,
		},
		Stats: StatsConfig{
			Interval: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		JWT: JWTConfig{
			AccessTokenTTL: time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply environment overrides
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if gatewayID := os.Getenv("GATEWAY_ID"); gatewayID != "" {
		c.Concentrator.GatewayID = gatewayID
	}
}

// Validate checks the struct tags and the rules spanning several fields
func (c *Config) Validate() error {
	if err := validation.NewValidator().Validate(c); err != nil {
		return err
	}

	for i, r := range c.Concentrator.Radios {
		if r.TxFreqMin > r.TxFreqMax {
			return fmt.Errorf("radio %d: tx_freq_min %d above tx_freq_max %d", i, r.TxFreqMin, r.TxFreqMax)
		}
	}

	if c.JITQueue.TxMaxAdvanceDelay > time.Duration(1<<31)*time.Microsecond {
		return fmt.Errorf("tx_max_advance_delay %s exceeds half the counter range", c.JITQueue.TxMaxAdvanceDelay)
	}

	if q := c.JITQueue; q.BeaconPeriod < 0 || (q.BeaconPeriod > 0 && q.BeaconPeriod <= q.BeaconGuard+q.BeaconReserved) {
		return fmt.Errorf("beacon_period %s must exceed beacon_guard plus beacon_reserved", q.BeaconPeriod)
	}

	return nil
}

// GatewayID returns the parsed gateway identifier
func (c *Config) GatewayID() (lorawan.EUI64, error) {
	return lorawan.ParseEUI64(c.Concentrator.GatewayID)
}

// QueueConfig maps the JIT queue section to the queue parameters
func (c *Config) QueueConfig() jitqueue.Config {
	q := c.JITQueue
	return jitqueue.Config{
		Capacity:          q.Capacity,
		TxStartDelay:      q.TxStartDelay,
		TxMarginDelay:     q.TxMarginDelay,
		TxJITDelay:        q.TxJITDelay,
		TxMaxAdvanceDelay: q.TxMaxAdvanceDelay,
		BeaconPeriod:      q.BeaconPeriod,
		BeaconOffset:      q.BeaconOffset,
		BeaconGuard:       q.BeaconGuard,
		BeaconReserved:    q.BeaconReserved,
	}
}
