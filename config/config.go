package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"hermannm.dev/wrap"
)

// Config is the configuration of the cube server (the serve, ingest and index commands).
type Config struct {
	BaseConfig
	Memory        Memory
	ClickHouse    ClickHouse
	Elasticsearch Elasticsearch
}

type BaseConfig struct {
	IsProduction bool       `env:"PRODUCTION"   envDefault:"false"`
	LogLevel     slog.Level `env:"LOG_LEVEL"    envDefault:"INFO"`
	Backend      Backend    `env:"CUBE_BACKEND"`
	SchemaPath   string     `env:"CUBE_SCHEMA_PATH"`
	API          API
}

type API struct {
	Port            string `env:"API_PORT"`
	ResultCacheSize int    `env:"API_RESULT_CACHE_SIZE" envDefault:"100"`
}

type Memory struct {
	DataDir string `env:"CUBE_DATA_DIR"`
}

type ClickHouse struct {
	Address      string `env:"CLICKHOUSE_ADDRESS"`
	DatabaseName string `env:"CLICKHOUSE_DB_NAME"`
	Username     string `env:"CLICKHOUSE_USERNAME"`
	Password     string `env:"CLICKHOUSE_PASSWORD"`
	Debug        bool   `env:"CLICKHOUSE_DEBUG_ENABLED" envDefault:"false"`
}

// Elasticsearch holds the coordinate search index settings. Search is served by the backend
// itself when Enabled is false.
type Elasticsearch struct {
	Enabled  bool   `env:"ELASTICSEARCH_ENABLED"       envDefault:"false"`
	Address  string `env:"ELASTICSEARCH_ADDRESS"       envDefault:"http://localhost:9200"`
	Username string `env:"ELASTICSEARCH_USERNAME"      envDefault:""`
	Password string `env:"ELASTICSEARCH_PASSWORD"      envDefault:""`
	Index    string `env:"ELASTICSEARCH_INDEX"         envDefault:"cube_coordinates"`
	Debug    bool   `env:"ELASTICSEARCH_DEBUG_ENABLED" envDefault:"false"`
}

// Explorer is the configuration of the explore client commands.
type Explorer struct {
	IsProduction    bool          `env:"PRODUCTION"        envDefault:"false"`
	LogLevel        slog.Level    `env:"LOG_LEVEL"         envDefault:"INFO"`
	MngURL          string        `env:"MNG_URL"           envDefault:"http://localhost:8000/mng"`
	Debounce        time.Duration `env:"EXPLORER_DEBOUNCE" envDefault:"10ms"`
	ResultCacheSize int           `env:"RESULT_CACHE_SIZE" envDefault:"10"`
	DrillCacheSize  int           `env:"DRILL_CACHE_SIZE"  envDefault:"0"`
	HistoryDir      string        `env:"HISTORY_DIR"       envDefault:""`
	HistorySession  string        `env:"HISTORY_SESSION"   envDefault:"default"`
}

type Backend string

const (
	BackendClickHouse Backend = "clickhouse"
	BackendMemory     Backend = "memory"
)

var parseOptions = env.Options{RequiredIfNoDef: true}

func ReadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	var config Config

	if err := env.ParseWithOptions(&config.BaseConfig, parseOptions); err != nil {
		return Config{}, err
	}

	switch config.Backend {
	case BackendClickHouse:
		if err := env.ParseWithOptions(&config.ClickHouse, parseOptions); err != nil {
			return Config{}, err
		}
	case BackendMemory:
		if err := env.ParseWithOptions(&config.Memory, parseOptions); err != nil {
			return Config{}, err
		}
	default:
		err := fmt.Errorf("must be one of: '%s', '%s'", BackendClickHouse, BackendMemory)
		return Config{}, wrap.Errorf(err, "unsupported value '%s' for CUBE_BACKEND in env", config.Backend)
	}

	if err := env.ParseWithOptions(&config.Elasticsearch, parseOptions); err != nil {
		return Config{}, err
	}

	return config, nil
}

func ReadExplorerFromEnv() (Explorer, error) {
	if err := loadDotEnv(); err != nil {
		return Explorer{}, err
	}

	var config Explorer
	if err := env.ParseWithOptions(&config, parseOptions); err != nil {
		return Explorer{}, err
	}
	if config.ResultCacheSize < 0 || config.DrillCacheSize < 0 {
		return Explorer{}, errors.New("cache sizes in env cannot be negative")
	}

	return config, nil
}

// A missing .env file is fine, the environment may be set by other means.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrap.Error(err, "failed to load .env file")
	}
	return nil
}
