package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Database    DatabaseConfig
	Embedder    EmbedderConfig
	Recognition RecognitionConfig
}

type DatabaseConfig struct {
	Path string // Path to the SQLite database file (default face_database/faces.sqlite)
}

type EmbedderConfig struct {
	URL          string // Embedding server base URL (default http://localhost:8000)
	Dim          int    // Embedding dimension, fixed for the process lifetime (default 512)
	MaxImageSize int    // Maximum image dimension before upload; larger images are downscaled
}

// RecognitionConfig holds the identity-decision tuning constants.
// Defaults come from the embedded thresholds.yaml.
type RecognitionConfig struct {
	// RecognitionThreshold is the global similarity floor for
	// high-confidence decisions such as bank reinforcement.
	RecognitionThreshold float64 `yaml:"recognition_threshold"`

	// HighConfidenceThreshold marks a match as high confidence.
	HighConfidenceThreshold float64 `yaml:"high_confidence_threshold"`

	// RegistrationSimilarityThreshold is the fixed bar for refusing a
	// duplicate enrollment, independent of adaptive scaling.
	RegistrationSimilarityThreshold float64 `yaml:"registration_similarity_threshold"`

	// RegistrationCooldownSeconds is the per-person wall-clock cooldown
	// between registration attempts.
	RegistrationCooldownSeconds float64 `yaml:"registration_cooldown_seconds"`

	// EvaluationFrames is the consensus window length in frames.
	EvaluationFrames int `yaml:"evaluation_frames"`

	// MaxEmbeddingsPerPerson caps each person's embedding bank.
	MaxEmbeddingsPerPerson int `yaml:"max_embeddings_per_person"`

	// DefaultDisplayConfidence is reported when nothing matches.
	DefaultDisplayConfidence float64 `yaml:"default_display_confidence"`

	Adaptive AdaptiveConfig `yaml:"adaptive"`
}

// AdaptiveConfig defines the bank-size buckets for the adaptive
// acceptance threshold.
type AdaptiveConfig struct {
	FewThreshold     float64 `yaml:"few_threshold"`
	MediumThreshold  float64 `yaml:"medium_threshold"`
	ManyThreshold    float64 `yaml:"many_threshold"`
	DefaultThreshold float64 `yaml:"default_threshold"`
	FewLimit         int     `yaml:"few_limit"`
	ManyLimit        int     `yaml:"many_limit"`
}

// Threshold returns the acceptance threshold for a bank of n embeddings.
func (a *AdaptiveConfig) Threshold(n int) float64 {
	switch {
	case n <= 0:
		// Defensive: a best match with an empty bank should not occur.
		return a.DefaultThreshold
	case n < a.FewLimit:
		return a.FewThreshold
	case n <= a.ManyLimit:
		return a.MediumThreshold
	default:
		return a.ManyThreshold
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var rec RecognitionConfig
	if err := yaml.Unmarshal(thresholdsYAML, &rec); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	// Env vars override the embedded tuning defaults.
	rec.RecognitionThreshold = envFloat("RECOGNITION_THRESHOLD", rec.RecognitionThreshold)
	rec.HighConfidenceThreshold = envFloat("HIGH_CONFIDENCE_THRESHOLD", rec.HighConfidenceThreshold)
	rec.RegistrationSimilarityThreshold = envFloat("REGISTRATION_SIMILARITY_THRESHOLD", rec.RegistrationSimilarityThreshold)
	rec.RegistrationCooldownSeconds = envFloat("REGISTRATION_COOLDOWN", rec.RegistrationCooldownSeconds)
	rec.EvaluationFrames = envInt("EVALUATION_FRAMES", rec.EvaluationFrames)
	rec.MaxEmbeddingsPerPerson = envInt("MAX_EMBEDDINGS_PER_PERSON", rec.MaxEmbeddingsPerPerson)

	return &Config{
		Database: DatabaseConfig{
			Path: envString("DATABASE_PATH", "face_database/faces.sqlite"),
		},
		Embedder: EmbedderConfig{
			URL:          envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim:          envInt("EMBEDDING_DIM", 512),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", 1920),
		},
		Recognition: rec,
	}
}
