package domain

import "github.com/kailas-cloud/semdex/internal/domain/cutoff"

// ModelConfig pins the embedding model identity and the cutoff thresholds
// tuned against it. The two travel together: a different model shifts the
// distance distribution and the tuned thresholds stop meaning anything.
type ModelConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      string
	Algorithm           string
	DocumentInstruction string
	QueryInstruction    string
	Cutoff              cutoff.Thresholds
}

// DefaultModelConfig returns the configuration tuned for
// paraphrase-multilingual-MiniLM-L12-v2 served over an OpenAI-compatible API.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:          "paraphrase-multilingual-MiniLM-L12-v2",
		Dimensions:     384,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
		Cutoff:         cutoff.DefaultThresholds(),
	}
}
