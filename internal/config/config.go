// Package config loads the process-wide pipeline configuration from the
// environment. Everything is read once at startup and passed explicitly into
// the components that need it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Config is the validated pipeline configuration.
type Config struct {
	ProjectID      string
	VertexAIRegion string
	ModelID        string

	MaxOutputTokens  int32
	Temperature      float32
	ChunkCharBudget  int
	MaxModelAttempts int
	ModelCallTimeout time.Duration

	InputDir  string
	StoreRoot string

	// ArtifactBackend selects where stage records live: "fs" (default) or
	// "gcs" with ArtifactBucket set.
	ArtifactBackend string
	ArtifactBucket  string

	// FirestoreCollection enables the per-document status tracker when
	// non-empty.
	FirestoreCollection string

	// Workers bounds parallelism across documents within a stage. 1 means
	// strictly sequential processing.
	Workers int
}

// Load reads and validates the pipeline configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		ProjectID:           GetEnv("PROJECT_ID", ""),
		VertexAIRegion:      GetEnv("VERTEX_AI_REGION", "us-central1"),
		ModelID:             GetEnv("MODEL_ID", "gemini-1.5-pro"),
		InputDir:            GetEnv("PAGE_IMAGE_DIR", "ripimg"),
		StoreRoot:           GetEnv("PATHWAY_STORE_DIR", "."),
		ArtifactBackend:     GetEnv("ARTIFACT_BACKEND", "fs"),
		ArtifactBucket:      GetEnv("ARTIFACT_BUCKET", ""),
		FirestoreCollection: GetEnv("FIRESTORE_COLLECTION", ""),
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if cfg.ArtifactBackend != "fs" && cfg.ArtifactBackend != "gcs" {
		return nil, fmt.Errorf("ARTIFACT_BACKEND must be \"fs\" or \"gcs\", got %q", cfg.ArtifactBackend)
	}
	if cfg.ArtifactBackend == "gcs" && cfg.ArtifactBucket == "" {
		return nil, fmt.Errorf("ARTIFACT_BUCKET must be set when ARTIFACT_BACKEND is \"gcs\"")
	}

	var err error
	if cfg.MaxOutputTokens, err = envInt32("MAX_OUTPUT_TOKENS", 8192); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = envFloat32("MODEL_TEMPERATURE", 1.0); err != nil {
		return nil, err
	}
	if cfg.ChunkCharBudget, err = envInt("CHUNK_CHAR_BUDGET", 150000); err != nil {
		return nil, err
	}
	if cfg.MaxModelAttempts, err = envInt("MAX_MODEL_ATTEMPTS", 4); err != nil {
		return nil, err
	}
	if cfg.Workers, err = envInt("PIPELINE_WORKERS", 1); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("PIPELINE_WORKERS must be at least 1, got %d", cfg.Workers)
	}
	if cfg.ChunkCharBudget < 1 {
		return nil, fmt.Errorf("CHUNK_CHAR_BUDGET must be positive, got %d", cfg.ChunkCharBudget)
	}

	timeout := GetEnv("MODEL_CALL_TIMEOUT", "10m")
	if cfg.ModelCallTimeout, err = time.ParseDuration(timeout); err != nil {
		return nil, fmt.Errorf("MODEL_CALL_TIMEOUT is not a valid duration: %w", err)
	}

	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %w", key, err)
	}
	return v, nil
}

func envInt32(key string, fallback int32) (int32, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %w", key, err)
	}
	return int32(v), nil
}

func envFloat32(key string, fallback float32) (float32, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid number: %w", key, err)
	}
	return float32(v), nil
}
