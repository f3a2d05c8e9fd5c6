// Package config загружает настройки узла из YAML файла.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/sync"
	"github.com/iudanet/ledgersync/internal/validation"
)

// PassphraseEnv переменная окружения с паролем кластера. Имеет приоритет
// над файлом, чтобы пароль не хранился на диске.
const PassphraseEnv = "LEDGERSYNC_PASSPHRASE"

// Имена файлов в data_dir
const (
	LedgerFile = "ledger.db"
	StateFile  = "node.db"
)

// Config настройки узла
type Config struct {
	NodeID     string          `yaml:"node_id"`     // NodeID пусто: сгенерировать и сохранить при первом старте
	DataDir    string          `yaml:"data_dir"`    // DataDir каталог с базами узла
	ListenAddr string          `yaml:"listen_addr"` // ListenAddr адрес HTTP сервера синхронизации
	Log        LogConfig       `yaml:"log"`
	Cluster    ClusterConfig   `yaml:"cluster"`
	Peers      []string        `yaml:"peers"` // Peers статический список узлов host:port
	Sync       SyncConfig      `yaml:"sync"`
	GC         GCConfig        `yaml:"gc"`
	Clock      ClockConfig     `yaml:"clock"`
	Discovery  DiscoveryConfig `yaml:"discovery"`
}

// ClusterConfig общий секрет кластера
type ClusterConfig struct {
	Name       string `yaml:"name"`
	Passphrase string `yaml:"passphrase"`
}

// SyncConfig параметры anti-entropy
type SyncConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
	BatchSize int           `yaml:"batch_size"`
	RateLimit int           `yaml:"rate_limit"` // RateLimit запросов в минуту от одного узла, 0 без ограничения
}

// GCConfig параметры сборки tombstone
type GCConfig struct {
	Retention time.Duration `yaml:"retention"`
	Interval  time.Duration `yaml:"interval"` // Interval 0 отключает GC
}

// ClockConfig параметры HLC
type ClockConfig struct {
	MaxSkew time.Duration `yaml:"max_skew"`
}

// DiscoveryConfig параметры обнаружения узлов
type DiscoveryConfig struct {
	MDNS bool `yaml:"mdns"`
}

// LogConfig параметры логирования
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default возвращает настройки по умолчанию
func Default() *Config {
	return &Config{
		DataDir:    "data",
		ListenAddr: ":7420",
		Cluster: ClusterConfig{
			Name: "default",
		},
		Sync: SyncConfig{
			Interval:  30 * time.Second,
			Timeout:   time.Minute,
			BatchSize: sync.DefaultBatchSize,
			RateLimit: 1200,
		},
		GC: GCConfig{
			Retention: sync.DefaultRetention,
			Interval:  time.Hour,
		},
		Clock: ClockConfig{
			MaxSkew: hlc.DefaultMaxSkew,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load читает YAML файл поверх значений по умолчанию. Пустой path
// означает только значения по умолчанию. Неизвестные ключи - ошибка.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if pass := os.Getenv(PassphraseEnv); pass != "" {
		cfg.Cluster.Passphrase = pass
	}

	return cfg, nil
}

// Validate проверяет настройки и возвращает все найденные ошибки
func (c *Config) Validate() error {
	var errs []error

	if c.NodeID != "" {
		if err := validation.ValidateNodeID(c.NodeID); err != nil {
			errs = append(errs, fmt.Errorf("node_id: %w", err))
		}
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir cannot be empty"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr cannot be empty"))
	}
	for i, p := range c.Peers {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("peers[%d] cannot be empty", i))
		}
	}
	if c.Cluster.Passphrase != "" {
		if c.Cluster.Name == "" {
			errs = append(errs, errors.New("cluster.name is required with a passphrase"))
		}
		if err := validation.ValidatePassphrase(c.Cluster.Passphrase); err != nil {
			errs = append(errs, fmt.Errorf("cluster.passphrase: %w", err))
		}
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("sync.interval must be positive"))
	}
	if c.Sync.Timeout <= 0 {
		errs = append(errs, errors.New("sync.timeout must be positive"))
	}
	if c.Sync.BatchSize <= 0 || c.Sync.BatchSize > sync.MaxPageSize {
		errs = append(errs, fmt.Errorf("sync.batch_size must be between 1 and %d", sync.MaxPageSize))
	}
	if c.Sync.RateLimit < 0 {
		errs = append(errs, errors.New("sync.rate_limit cannot be negative"))
	}
	if c.GC.Retention <= 0 {
		errs = append(errs, errors.New("gc.retention must be positive"))
	}
	if c.GC.Interval < 0 {
		errs = append(errs, errors.New("gc.interval cannot be negative"))
	}
	if c.Clock.MaxSkew <= 0 {
		errs = append(errs, errors.New("clock.max_skew must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// LedgerPath путь к SQLite базе сущностей
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, LedgerFile)
}

// StatePath путь к BoltDB базе состояния узла
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, StateFile)
}

// NewLogger создает slog логгер по настройкам
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}
