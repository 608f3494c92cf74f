package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"

	minGenerationTimeout = 10 * time.Second
	maxGenerationTimeout = 15 * time.Second
)

// Config holds all configuration for scout-engine.
// Values come from config.yaml with environment variable overrides. Secrets
// (PGPASSWORD, LLM_API_KEY) only come from the environment.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`

	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// TrustProxy takes the client address from X-Forwarded-For. Only enable
	// behind a proxy that overwrites the header.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`

	Database    DatabaseConfig    `yaml:"database"`
	Engine      EngineConfig      `yaml:"engine"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Planner     PlannerConfig     `yaml:"planner"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
	LLM         LLMConfig         `yaml:"llm"`
	Session     SessionConfig     `yaml:"session"`
	CORS        CORSConfig        `yaml:"cors"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// DatabaseConfig selects and configures the match database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:"scout_reader"`
	Password string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"PGDATABASE" env-default:"vlr_scouting"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	MaxConnections     int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	PoolAcquireTimeout time.Duration `yaml:"pool_acquire_timeout" env:"DB_POOL_ACQUIRE_TIMEOUT" env-default:"3s"`
	StatementTimeout   time.Duration `yaml:"statement_timeout" env:"DB_STATEMENT_TIMEOUT" env-default:"5s"`

	// RunMigrations applies the bundled match schema on startup. Only for local
	// and test databases; production points at an existing read replica.
	RunMigrations bool `yaml:"run_migrations" env:"DB_RUN_MIGRATIONS" env-default:"false"`

	// DuckDBPath is the database file used when Driver is "duckdb".
	DuckDBPath string `yaml:"duckdb_path" env:"DUCKDB_PATH" env-default:""`
}

// EngineConfig holds request limits for the question engine and fixed endpoints.
type EngineConfig struct {
	MaxQuestionLength int `yaml:"max_question_length" env:"ENGINE_MAX_QUESTION_LENGTH" env-default:"2000"`
	RowCap            int `yaml:"row_cap" env:"ENGINE_ROW_CAP" env-default:"500"`
	DefaultMatches    int `yaml:"default_matches" env:"ENGINE_DEFAULT_MATCHES" env-default:"10"`
	MaxMatches        int `yaml:"max_matches" env:"ENGINE_MAX_MATCHES" env-default:"100"`
	// ScoutConcurrency bounds the sections of a full scout report fetched at once.
	ScoutConcurrency int `yaml:"scout_concurrency" env:"ENGINE_SCOUT_CONCURRENCY" env-default:"4"`
	// TeamCacheTTL is how long the known-team list is cached.
	TeamCacheTTL time.Duration `yaml:"team_cache_ttl" env:"ENGINE_TEAM_CACHE_TTL" env-default:"5m"`
	// ExposeSQL returns the executed statement with each answer.
	ExposeSQL bool `yaml:"expose_sql" env:"ENGINE_EXPOSE_SQL" env-default:"false"`
}

// CatalogConfig points at an alternative schema catalog. Empty uses the embedded one.
type CatalogConfig struct {
	Path string `yaml:"path" env:"CATALOG_PATH" env-default:""`
}

// PlannerConfig toggles the LLM SQL proposer.
type PlannerConfig struct {
	LLMSQL bool `yaml:"llm_sql" env:"PLANNER_LLM_SQL" env-default:"false"`
}

// InterpreterConfig toggles LLM phrasing of answers.
type InterpreterConfig struct {
	LLMProse bool `yaml:"llm_prose" env:"INTERPRETER_LLM_PROSE" env-default:"false"`
}

// LLMConfig configures the language model provider. An empty provider
// disables every LLM feature.
type LLMConfig struct {
	Provider          string        `yaml:"provider" env:"LLM_PROVIDER" env-default:""`
	Endpoint          string        `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.groq.com/openai/v1"`
	Model             string        `yaml:"model" env:"LLM_MODEL" env-default:"llama-3.3-70b-versatile"`
	APIKey            string        `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	MaxTokens         int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	Temperature       float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.2"`
	GenerationTimeout time.Duration `yaml:"generation_timeout" env:"LLM_GENERATION_TIMEOUT" env-default:"12s"`
}

// Enabled reports whether a provider is configured.
func (c *LLMConfig) Enabled() bool {
	return c.Provider != ""
}

// SessionConfig bounds in-memory conversation state.
type SessionConfig struct {
	MaxTurns int           `yaml:"max_turns" env:"SESSION_MAX_TURNS" env-default:"10"`
	IdleTTL  time.Duration `yaml:"idle_ttl" env:"SESSION_IDLE_TTL" env-default:"2h"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:3000"`
}

// MCPConfig toggles the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads path (usually config.yaml) with environment overrides. A missing
// file is not an error: configuration then comes from the environment alone.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.LLM.GenerationTimeout = clampGenerationTimeout(cfg.LLM.GenerationTimeout)

	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateTLS(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case DriverPostgres:
	case DriverDuckDB:
		if c.Database.DuckDBPath == "" {
			return fmt.Errorf("database.duckdb_path is required for the duckdb driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q (want postgres or duckdb)", c.Database.Driver)
	}
	if c.Database.StatementTimeout <= 0 || c.Database.PoolAcquireTimeout <= 0 {
		return fmt.Errorf("database timeouts must be positive")
	}

	if c.Engine.RowCap <= 0 {
		return fmt.Errorf("engine.row_cap must be positive")
	}
	if c.Engine.MaxQuestionLength <= 0 {
		return fmt.Errorf("engine.max_question_length must be positive")
	}
	if c.Engine.DefaultMatches <= 0 || c.Engine.MaxMatches < c.Engine.DefaultMatches {
		return fmt.Errorf("engine.default_matches must be positive and at most engine.max_matches")
	}
	if c.Engine.ScoutConcurrency <= 0 {
		return fmt.Errorf("engine.scout_concurrency must be positive")
	}
	if c.Session.MaxTurns <= 0 {
		return fmt.Errorf("session.max_turns must be positive")
	}

	if (c.Planner.LLMSQL || c.Interpreter.LLMProse) && !c.LLM.Enabled() {
		return fmt.Errorf("planner.llm_sql and interpreter.llm_prose require llm.provider")
	}
	if c.LLM.Enabled() && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required when llm.provider is set")
	}

	return nil
}

// validateTLS ensures cert and key are set together and exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}
	return nil
}

// clampGenerationTimeout keeps the LLM deadline inside the 10-15s request budget.
func clampGenerationTimeout(d time.Duration) time.Duration {
	switch {
	case d < minGenerationTimeout:
		return minGenerationTimeout
	case d > maxGenerationTimeout:
		return maxGenerationTimeout
	default:
		return d
	}
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DuckDBDSN returns the read-only DuckDB data source name.
func (c *DatabaseConfig) DuckDBDSN() string {
	path := c.DuckDBPath
	if strings.Contains(path, "?") {
		return path + "&access_mode=READ_ONLY"
	}
	return path + "?access_mode=READ_ONLY"
}
