package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Server:   ServerConfig{SocketPath: "/tmp/semdex-test.sock"},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{
			Provider: ProviderConfig{BaseURL: "http://localhost:7997/v1"},
			Model: ModelConfig{
				Dimensions: 384,
				Cutoff: CutoffConfig{
					QualityFloor:  0.5,
					MaxDistance:   0.75,
					GapMultiplier: 2.5,
					AvgFloor:      0.01,
				},
			},
		},
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider.Budget = BudgetConfig{
		DailyTokenLimit: 1000000,
		Action:          "invalid_action",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.provider.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	validActions := []string{"", "warn", "reject"}

	for _, action := range validActions {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Provider.Budget.Action = action

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_MissingSocketPath(t *testing.T) {
	cfg := validConfig()
	cfg.Server.SocketPath = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing socket path")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider.BaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing provider base URL")
	}
}

func TestValidate_CutoffFloorAboveCeiling(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model.Cutoff.QualityFloor = 0.9
	cfg.Embedding.Model.Cutoff.MaxDistance = 0.75

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when quality floor exceeds max distance")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Server.SocketPath != "/tmp/semdex.sock" {
		t.Errorf("expected SocketPath=/tmp/semdex.sock, got %q", cfg.Server.SocketPath)
	}
	if cfg.Server.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.Server.ReadTimeoutSec)
	}
	if cfg.Server.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.Server.WriteTimeoutSec)
	}
	if cfg.Server.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.Server.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected Driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Index.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Index.HNSWM)
	}
	if cfg.Index.HNSWEFConstruct != 400 {
		t.Errorf("expected HNSWEFConstruct=400, got %d", cfg.Index.HNSWEFConstruct)
	}
	if cfg.Embedding.Provider.Name != "local" {
		t.Errorf("expected provider name 'local', got %q", cfg.Embedding.Provider.Name)
	}
	if cfg.Embedding.Model.Name != "paraphrase-multilingual-MiniLM-L12-v2" {
		t.Errorf("unexpected default model: %q", cfg.Embedding.Model.Name)
	}
	if cfg.Embedding.Model.Dimensions != 384 {
		t.Errorf("expected Dimensions=384, got %d", cfg.Embedding.Model.Dimensions)
	}
	if cfg.Embedding.Model.Cutoff.QualityFloor != 0.50 {
		t.Errorf("expected QualityFloor=0.50, got %f", cfg.Embedding.Model.Cutoff.QualityFloor)
	}
	if cfg.Embedding.Model.Cutoff.MaxDistance != 0.75 {
		t.Errorf("expected MaxDistance=0.75, got %f", cfg.Embedding.Model.Cutoff.MaxDistance)
	}
	if cfg.Embedding.Model.Cutoff.GapMultiplier != 2.5 {
		t.Errorf("expected GapMultiplier=2.5, got %f", cfg.Embedding.Model.Cutoff.GapMultiplier)
	}
	if cfg.Embedding.Model.Cutoff.AvgFloor != 0.01 {
		t.Errorf("expected AvgFloor=0.01, got %f", cfg.Embedding.Model.Cutoff.AvgFloor)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{SocketPath: "/run/semdex/api.sock", ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Index:    IndexConfig{HNSWM: 16, HNSWEFConstruct: 200},
		Embedding: EmbeddingConfig{
			Provider: ProviderConfig{Name: "nebius"},
			Model: ModelConfig{
				Name:       "intfloat/multilingual-e5-small",
				Dimensions: 384,
				Cutoff:     CutoffConfig{QualityFloor: 0.4, MaxDistance: 0.7, GapMultiplier: 2.0, AvgFloor: 0.02},
			},
		},
	}
	cfg.ApplyDefaults()

	if cfg.Server.SocketPath != "/run/semdex/api.sock" {
		t.Errorf("expected SocketPath preserved, got %q", cfg.Server.SocketPath)
	}
	if cfg.Server.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.Server.ReadTimeoutSec)
	}
	if cfg.Index.HNSWM != 16 {
		t.Errorf("expected HNSWM=16, got %d", cfg.Index.HNSWM)
	}
	if cfg.Embedding.Model.Name != "intfloat/multilingual-e5-small" {
		t.Errorf("expected model preserved, got %q", cfg.Embedding.Model.Name)
	}
	if cfg.Embedding.Model.Cutoff.QualityFloor != 0.4 {
		t.Errorf("expected QualityFloor=0.4, got %f", cfg.Embedding.Model.Cutoff.QualityFloor)
	}
}

func TestModelSettings(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model.Name = "intfloat/multilingual-e5-small"
	cfg.Embedding.Model.QueryInstruction = "query: "
	cfg.Embedding.Model.DocumentInstruction = "passage: "

	mc := cfg.ModelSettings()

	if mc.Model != "intfloat/multilingual-e5-small" {
		t.Errorf("Model = %q", mc.Model)
	}
	if mc.Dimensions != 384 {
		t.Errorf("Dimensions = %d", mc.Dimensions)
	}
	if mc.DistanceMetric != "cosine" || mc.Algorithm != "hnsw" {
		t.Errorf("metric/algorithm = %q/%q, want cosine/hnsw", mc.DistanceMetric, mc.Algorithm)
	}
	if mc.QueryInstruction != "query: " || mc.DocumentInstruction != "passage: " {
		t.Errorf("instructions = %q/%q", mc.QueryInstruction, mc.DocumentInstruction)
	}
	if mc.Cutoff.QualityFloor != 0.5 || mc.Cutoff.GapMultiplier != 2.5 {
		t.Errorf("cutoff = %+v", mc.Cutoff)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SEMDEX_TEST_TOKEN", "sekret")

	in := []byte("token: ${SEMDEX_TEST_TOKEN}\nurl: ${SEMDEX_UNSET_VAR:-http://localhost:7997}\n")
	out := string(expandEnvVars(in))

	if !strings.Contains(out, "token: sekret") {
		t.Errorf("token not expanded: %q", out)
	}
	if !strings.Contains(out, "url: http://localhost:7997") {
		t.Errorf("default not applied: %q", out)
	}
}
