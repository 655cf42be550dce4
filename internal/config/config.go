// Package config loads the server configuration from a YAML file with
// environment-variable overrides, and watches the file for changes.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Listen      ListenConfig      `yaml:"listen"`
	DB          DBConfig          `yaml:"db"`
	Pools       PoolConfig        `yaml:"pools"`
	HealthCheck HealthCheckConfig `yaml:"health_check"`
}

// ListenConfig defines the TCP and admin API endpoints.
type ListenConfig struct {
	Port       int    `yaml:"port"`        // overridden by env port6
	BufferSize int    `yaml:"buffer_size"` // per-connection read buffer hint
	APIPort    int    `yaml:"api_port"`
	APIBind    string `yaml:"api_bind"`
	APIKey     string `yaml:"api_key"`
}

// DBConfig locates the PostgreSQL store. Every field is overridable via
// DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

// URL renders the connection string for the pgx pool.
func (d DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, url.PathEscape(d.Name))
}

// Redacted returns a copy with the password masked, for the admin API.
func (d DBConfig) Redacted() DBConfig {
	if d.Password != "" {
		d.Password = "***REDACTED***"
	}
	return d
}

// PoolConfig sizes the two I/O worker pools. Workers of 0 means one worker
// per CPU.
type PoolConfig struct {
	Workers       int `yaml:"workers"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// HealthCheckConfig controls the periodic database liveness probe.
type HealthCheckConfig struct {
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file. A missing file is not an error:
// defaults plus environment overrides describe a complete configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// env-only deployment
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		data = substituteEnvVars(data)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("port6"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Listen.Port = port
		}
	}
	if v, ok := os.LookupEnv("DB_HOST"); ok {
		cfg.DB.Host = v
	}
	if v, ok := os.LookupEnv("DB_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.DB.Port = port
		}
	}
	if v, ok := os.LookupEnv("DB_NAME"); ok {
		cfg.DB.Name = v
	}
	if v, ok := os.LookupEnv("DB_USER"); ok {
		cfg.DB.User = v
	}
	if v, ok := os.LookupEnv("DB_PASSWORD"); ok {
		cfg.DB.Password = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 8080
	}
	if cfg.Listen.BufferSize == 0 {
		cfg.Listen.BufferSize = 8192
	}
	if cfg.Listen.APIPort == 0 {
		cfg.Listen.APIPort = 9090
	}
	if cfg.Listen.APIBind == "" {
		cfg.Listen.APIBind = "127.0.0.1"
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "persons"
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "postgres"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Pools.QueueCapacity == 0 {
		cfg.Pools.QueueCapacity = 1000
	}
	if cfg.HealthCheck.Interval == 0 {
		cfg.HealthCheck.Interval = 15 * time.Second
	}
	if cfg.HealthCheck.Timeout == 0 {
		cfg.HealthCheck.Timeout = 2 * time.Second
	}
	if cfg.HealthCheck.FailureThreshold == 0 {
		cfg.HealthCheck.FailureThreshold = 3
	}
}

func validate(cfg *Config) error {
	if cfg.Listen.Port <= 0 || cfg.Listen.Port > 65535 {
		return fmt.Errorf("listen port %d out of range", cfg.Listen.Port)
	}
	if cfg.Listen.APIPort <= 0 || cfg.Listen.APIPort > 65535 {
		return fmt.Errorf("api port %d out of range", cfg.Listen.APIPort)
	}
	if cfg.Listen.Port == cfg.Listen.APIPort {
		return fmt.Errorf("listen port and api port collide on %d", cfg.Listen.Port)
	}
	if cfg.Pools.Workers < 0 {
		return fmt.Errorf("pool workers must not be negative")
	}
	if cfg.DB.Port <= 0 || cfg.DB.Port > 65535 {
		return fmt.Errorf("db port %d out of range", cfg.DB.Port)
	}
	return nil
}

// Watcher watches the config file for changes and calls the callback with
// the freshly loaded config.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	// Debounce timer to avoid rapid reloads
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					cw.reload()
				})
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "err", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		slog.Warn("config hot-reload failed", "path", cw.path, "err", err)
		return
	}
	slog.Info("configuration reloaded", "path", cw.path)
	cw.callback(cfg)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
