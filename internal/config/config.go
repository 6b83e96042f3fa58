package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultWorkDir               = "tmp"
	defaultFFmpegPath            = "ffmpeg"
	defaultRetention             = 24 * time.Hour
	defaultMaxConversionDuration = 30 * time.Minute
	defaultSweepInterval         = time.Minute
	defaultStaleAfter            = 6 * time.Hour
	defaultMaxConcurrent         = 4
	defaultCPUCheckInterval      = 10 * time.Second
	defaultFetchTimeout          = 30 * time.Second
	defaultStatusTTL             = 24 * time.Hour
	defaultStatusChannel         = "export_jobs_channel"
	defaultStatusKeyPrefix       = "export:status:"
)

type Config struct {
	Server   ServerConfig
	Postgres DBConfig
	Redis    RedisConfig
	S3       S3Config
	Logger   Logger
	Export   ExportConfig
}

type ServerConfig struct {
	AppVersion   string
	Port         string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AllowOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	PgDriver string
	SSLMode  string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	UseTLS        bool
	StatusPrefix  string
	StatusChannel string
	StatusTTL     time.Duration
}

type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	OutputBucket string
	KeyPrefix    string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

// ExportConfig holds the job lifecycle policy.
type ExportConfig struct {
	WorkDir               string
	FFmpegPath            string
	Retention             time.Duration
	MaxConversionDuration time.Duration
	SweepInterval         time.Duration
	// StaleAfter reclaims pending/running jobs whose runner never reached a
	// terminal state. Must be larger than MaxConversionDuration.
	StaleAfter       time.Duration
	MaxRetainedBytes int64
	MaxRetainedJobs  int
	MaxConcurrent    int
	MaxCPUUsage      float64
	CPUCheckInterval time.Duration
	FetchTimeout     time.Duration
	PublicBaseURL    string
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate fills unset fields with defaults and rejects inconsistent policy.
func (c *Config) Validate() error {
	e := &c.Export
	if e.WorkDir == "" {
		e.WorkDir = defaultWorkDir
	}
	if e.FFmpegPath == "" {
		e.FFmpegPath = defaultFFmpegPath
	}
	if e.Retention <= 0 {
		e.Retention = defaultRetention
	}
	if e.MaxConversionDuration <= 0 {
		e.MaxConversionDuration = defaultMaxConversionDuration
	}
	if e.SweepInterval <= 0 {
		e.SweepInterval = defaultSweepInterval
	}
	if e.StaleAfter <= 0 {
		e.StaleAfter = defaultStaleAfter
	}
	if e.MaxConcurrent <= 0 {
		e.MaxConcurrent = defaultMaxConcurrent
	}
	if e.CPUCheckInterval <= 0 {
		e.CPUCheckInterval = defaultCPUCheckInterval
	}
	if e.FetchTimeout <= 0 {
		e.FetchTimeout = defaultFetchTimeout
	}
	if e.MaxRetainedBytes < 0 {
		return fmt.Errorf("export.maxRetainedBytes must not be negative: %d", e.MaxRetainedBytes)
	}
	if e.MaxRetainedJobs < 0 {
		return fmt.Errorf("export.maxRetainedJobs must not be negative: %d", e.MaxRetainedJobs)
	}
	if e.StaleAfter <= e.MaxConversionDuration {
		return fmt.Errorf("export.staleAfter (%s) must exceed export.maxConversionDuration (%s)",
			e.StaleAfter, e.MaxConversionDuration)
	}

	if c.Redis.StatusTTL <= 0 {
		c.Redis.StatusTTL = defaultStatusTTL
	}
	if c.Redis.StatusChannel == "" {
		c.Redis.StatusChannel = defaultStatusChannel
	}
	if c.Redis.StatusPrefix == "" {
		c.Redis.StatusPrefix = defaultStatusKeyPrefix
	}
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	return nil
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.RedisAddr != ""
}

func (c *Config) S3Enabled() bool {
	return c.S3.OutputBucket != ""
}

func (c *Config) PostgresEnabled() bool {
	return c.Postgres.Host != ""
}
