package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/cutoff"
)

// Config holds the semdex gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds the shared service credential.
type AuthConfig struct {
	ServiceToken string `yaml:"service_token"`
}

// ServerConfig holds the Unix socket listener settings.
type ServerConfig struct {
	SocketPath      string `yaml:"socket_path"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds HNSW build parameters.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds the embedding provider and model settings.
type EmbeddingConfig struct {
	Provider      ProviderConfig `yaml:"provider"`
	Model         ModelConfig    `yaml:"model"`
	CacheTTLHours int            `yaml:"cache_ttl_hours"` // 0 = cache forever
}

// ProviderConfig holds the OpenAI-compatible inference server settings.
type ProviderConfig struct {
	Name    string       `yaml:"name"` // metrics label
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ModelConfig pins the model identity and the cutoff thresholds tuned
// against it. Пороги живут рядом с моделью: другая модель — другие цифры.
type ModelConfig struct {
	Name                string       `yaml:"name"`
	Dimensions          int          `yaml:"dimensions"`
	QueryInstruction    string       `yaml:"query_instruction"`
	DocumentInstruction string       `yaml:"document_instruction"`
	Cutoff              CutoffConfig `yaml:"cutoff"`
}

// CutoffConfig overrides the relevance cutoff thresholds.
type CutoffConfig struct {
	QualityFloor  float64 `yaml:"quality_floor"`
	MaxDistance   float64 `yaml:"max_distance"`
	GapMultiplier float64 `yaml:"gap_multiplier"`
	AvgFloor      float64 `yaml:"avg_floor"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values. Model defaults
// come from the domain so the daemon and the tests agree on them.
func (c *Config) ApplyDefaults() {
	if c.Server.SocketPath == "" {
		c.Server.SocketPath = "/tmp/semdex.sock"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 10
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 30
	}
	if c.Server.ShutdownSec <= 0 {
		c.Server.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Embedding.Provider.Name == "" {
		c.Embedding.Provider.Name = "local"
	}

	def := domain.DefaultModelConfig()
	if c.Embedding.Model.Name == "" {
		c.Embedding.Model.Name = def.Model
	}
	if c.Embedding.Model.Dimensions <= 0 {
		c.Embedding.Model.Dimensions = def.Dimensions
	}
	if c.Embedding.Model.Cutoff.QualityFloor <= 0 {
		c.Embedding.Model.Cutoff.QualityFloor = cutoff.DefaultQualityFloor
	}
	if c.Embedding.Model.Cutoff.MaxDistance <= 0 {
		c.Embedding.Model.Cutoff.MaxDistance = cutoff.DefaultMaxDistance
	}
	if c.Embedding.Model.Cutoff.GapMultiplier <= 0 {
		c.Embedding.Model.Cutoff.GapMultiplier = cutoff.DefaultGapMultiplier
	}
	if c.Embedding.Model.Cutoff.AvgFloor <= 0 {
		c.Embedding.Model.Cutoff.AvgFloor = cutoff.DefaultAvgFloor
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Server.SocketPath == "" {
		return fmt.Errorf("server.socket_path is required")
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Provider.BaseURL == "" {
		return fmt.Errorf("embedding.provider.base_url is required")
	}
	if c.Embedding.Model.Dimensions <= 0 {
		return fmt.Errorf("embedding.model.dimensions must be positive, got %d", c.Embedding.Model.Dimensions)
	}
	switch c.Embedding.Provider.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.provider.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Provider.Budget.Action,
		)
	}
	if cut := c.Embedding.Model.Cutoff; cut.QualityFloor > cut.MaxDistance {
		return fmt.Errorf(
			"embedding.model.cutoff: quality_floor %.2f must not exceed max_distance %.2f",
			cut.QualityFloor, cut.MaxDistance,
		)
	}
	return nil
}

// ModelSettings converts the YAML model section into the domain model config.
func (c *Config) ModelSettings() domain.ModelConfig {
	def := domain.DefaultModelConfig()
	return domain.ModelConfig{
		Model:               c.Embedding.Model.Name,
		Dimensions:          c.Embedding.Model.Dimensions,
		DistanceMetric:      def.DistanceMetric,
		Algorithm:           def.Algorithm,
		DocumentInstruction: c.Embedding.Model.DocumentInstruction,
		QueryInstruction:    c.Embedding.Model.QueryInstruction,
		Cutoff: cutoff.Thresholds{
			QualityFloor:  c.Embedding.Model.Cutoff.QualityFloor,
			MaxDistance:   c.Embedding.Model.Cutoff.MaxDistance,
			GapMultiplier: c.Embedding.Model.Cutoff.GapMultiplier,
			AvgFloor:      c.Embedding.Model.Cutoff.AvgFloor,
		},
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
