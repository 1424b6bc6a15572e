package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Ingest   IngestConfig   `json:"ingest"`
	Engine   EngineConfig   `json:"engine"`
	Advisory AdvisoryConfig `json:"advisory"`
	Notify   NotifyConfig   `json:"notify"`
	Audit    AuditConfig    `json:"audit"`
	Profiling ProfilingConfig `json:"profiling"`
}

// ServerConfig defines the HTTP delivery surface.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// DatabaseConfig defines the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// IngestConfig defines alert ingestion settings. The dedup secret is
// resolved from the environment so it never lands in the config file.
type IngestConfig struct {
	SecretEnv string `json:"secretEnv"`
}

// EngineConfig defines position engine settings.
type EngineConfig struct {
	PendingEntryTimeout jsonDuration `json:"pendingEntryTimeout"`
	SweepInterval       jsonDuration `json:"sweepInterval"`
}

// AdvisoryConfig defines the external decision-support process.
type AdvisoryConfig struct {
	Command  string       `json:"command"`
	Args     []string     `json:"args"`
	Deadline jsonDuration `json:"deadline"`
}

// NotifyConfig defines change fan-out settings.
type NotifyConfig struct {
	QueueSize int `json:"queueSize"`
}

// AuditConfig defines the append-only raw event stream.
type AuditConfig struct {
	Dir       string `json:"dir"`
	QueueSize int    `json:"queueSize"`
}

// ProfilingConfig enables the pyroscope profiler.
type ProfilingConfig struct {
	Enable        bool   `json:"enable"`
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Server    ServerConfig
	Database  conn.Option
	Secret    string
	Engine    EngineSpec
	Advisory  AdvisorySpec
	Notify    NotifyConfig
	Audit     AuditConfig
	Profiling ProfilingConfig
}

// EngineSpec is the resolved engine configuration.
type EngineSpec struct {
	PendingEntryTimeout time.Duration
	SweepInterval       time.Duration
}

// AdvisorySpec is the resolved advisory configuration.
type AdvisorySpec struct {
	Command  string
	Args     []string
	Deadline time.Duration
}

const (
	defaultAddr                = ":8080"
	defaultSecretEnv           = "ALERT_WEBHOOK_SECRET"
	defaultAdvisoryDeadline    = 30 * time.Second
	defaultPendingEntryTimeout = 15 * time.Minute
	defaultSweepInterval       = time.Minute
	defaultNotifyQueueSize     = 256
	defaultAuditQueueSize      = 1024
)

// Load reads a JSON config file and resolves it against the environment.
func Load(path string) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, err
		}
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	loaded := Loaded{
		Server:    cfg.Server,
		Notify:    cfg.Notify,
		Audit:     cfg.Audit,
		Profiling: cfg.Profiling,
	}

	if loaded.Server.Addr == "" {
		loaded.Server.Addr = defaultAddr
	}

	loaded.Database = conn.Option{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}

	secretEnv := cfg.Ingest.SecretEnv
	if secretEnv == "" {
		secretEnv = defaultSecretEnv
	}
	loaded.Secret = os.Getenv(secretEnv)
	if loaded.Secret == "" {
		return Loaded{}, fmt.Errorf("dedup secret env %s is empty", secretEnv)
	}

	loaded.Engine = EngineSpec{
		PendingEntryTimeout: cfg.Engine.PendingEntryTimeout.or(defaultPendingEntryTimeout),
		SweepInterval:       cfg.Engine.SweepInterval.or(defaultSweepInterval),
	}

	if cfg.Advisory.Command != "" {
		loaded.Advisory = AdvisorySpec{
			Command:  cfg.Advisory.Command,
			Args:     cfg.Advisory.Args,
			Deadline: cfg.Advisory.Deadline.or(defaultAdvisoryDeadline),
		}
	}

	if loaded.Notify.QueueSize <= 0 {
		loaded.Notify.QueueSize = defaultNotifyQueueSize
	}
	if loaded.Audit.QueueSize <= 0 {
		loaded.Audit.QueueSize = defaultAuditQueueSize
	}

	return loaded, nil
}

// jsonDuration accepts "30s" style strings in the config file.
type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = jsonDuration(parsed)
	return nil
}

func (d jsonDuration) or(fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return time.Duration(d)
}
