// Package config loads BEACON's runtime configuration from YAML plus
// environment overrides, following the same load/validate shape the rest
// of the platform repository uses.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration for the BEACON retrieval core.
type Config struct {
	Postgres    PostgresConfig    `yaml:"postgres"`
	Valkey      ValkeyConfig      `yaml:"valkey"`
	Storage     StorageConfig     `yaml:"storage"`
	Identity    IdentityConfig    `yaml:"identity"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Retrieve    RetrieveConfig    `yaml:"retrieve"`
	Seed        SeedConfig        `yaml:"seed"`
}

// PostgresConfig contains DSN and pooling settings for pgx (spec §6's
// relational schema: Institution, User, Document(+metadata),
// EmbeddingChunk, AuditEvent).
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig backs the identity cache (C2).
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StorageConfig configures the S3-compatible object store C5 fetches from.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSsl"`
}

// IdentityConfig drives C2's token issuance/validation.
type IdentityConfig struct {
	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTtl"`
	CacheTTL  time.Duration `yaml:"cacheTtl"`
}

// ChunkingConfig drives C6's chunker (spec §4.6: target W=512, O=50).
type ChunkingConfig struct {
	TargetTokens  int `yaml:"targetTokens"`
	OverlapTokens int `yaml:"overlapTokens"`
}

// EmbeddingConfig drives C6's embedder (spec §4.6: D=1024, batch<=32).
type EmbeddingConfig struct {
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batchSize"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseUrl"`
}

// LLMConfig drives C10's planner LLM.
type LLMConfig struct {
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// CoordinatorConfig drives C7 (spec §4.7 "Recovery", §5 "Backpressure").
type CoordinatorConfig struct {
	RecoveryHorizon     time.Duration `yaml:"recoveryHorizon"`
	MaxConcurrentBuilds int           `yaml:"maxConcurrentBuilds"`
	MaxObjectBytes      int64         `yaml:"maxObjectBytes"`
}

// RetrieveConfig drives C9's hybrid retriever: VectorK sets the top-k of
// both legs and RRFConstant the fusion constant. FinalK and
// AllowPendingInResults are loaded and validated but no component reads
// them: the answerer requests 5 results per search, and the retriever's
// approval filter always admits pending documents.
type RetrieveConfig struct {
	VectorK              int  `yaml:"vectorK"`
	FinalK               int  `yaml:"finalK"`
	RRFConstant          int  `yaml:"rrfConstant"`
	AllowPendingInResults bool `yaml:"allowPendingInResults"`
}

// SeedConfig controls the developer singleton account bootstrap.
type SeedConfig struct {
	DeveloperEmail    string `yaml:"developerEmail"`
	DeveloperPassword string `yaml:"developerPassword"`
}

// Load reads configuration from a YAML file (CONFIG_PATH, or
// configs/config.yaml if present) then applies environment overrides.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("VALKEY_ENABLED"); v != "" {
		cfg.Valkey.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Valkey.Addr = v
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("IDENTITY_JWT_SECRET"); v != "" {
		cfg.Identity.JWTSecret = v
	}
	if v := os.Getenv("IDENTITY_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Identity.TokenTTL = parsed
		}
	}
	if v := os.Getenv("IDENTITY_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Identity.CacheTTL = parsed
		}
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("COORDINATOR_RECOVERY_HORIZON"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Coordinator.RecoveryHorizon = parsed
		}
	}
	if v := os.Getenv("COORDINATOR_MAX_CONCURRENT_BUILDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Coordinator.MaxConcurrentBuilds = parsed
		}
	}
	if v := os.Getenv("RETRIEVE_VECTOR_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retrieve.VectorK = parsed
		}
	}
	if v := os.Getenv("RETRIEVE_FINAL_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retrieve.FinalK = parsed
		}
	}
	if v := os.Getenv("RETRIEVE_RRF_CONSTANT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retrieve.RRFConstant = parsed
		}
	}
	if v := os.Getenv("RETRIEVE_ALLOW_PENDING_IN_RESULTS"); v != "" {
		cfg.Retrieve.AllowPendingInResults = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("SEED_DEVELOPER_EMAIL"); v != "" {
		cfg.Seed.DeveloperEmail = v
	}
	if v := os.Getenv("SEED_DEVELOPER_PASSWORD"); v != "" {
		cfg.Seed.DeveloperPassword = v
	}
}

func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{MaxConns: 30, MinConns: 5},
		Valkey:   ValkeyConfig{Enabled: false},
		Identity: IdentityConfig{
			TokenTTL: time.Hour,
			CacheTTL: 10 * time.Minute,
		},
		Chunking: ChunkingConfig{TargetTokens: 512, OverlapTokens: 50},
		Embedding: EmbeddingConfig{
			Dimension: 1024,
			BatchSize: 32,
			Model:     "text-embedding-3-large",
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
		},
		Coordinator: CoordinatorConfig{
			RecoveryHorizon:     30 * time.Minute,
			MaxConcurrentBuilds: 4,
			MaxObjectBytes:      50 * 1024 * 1024,
		},
		Retrieve: RetrieveConfig{
			VectorK:               20,
			FinalK:                5,
			RRFConstant:           60,
			AllowPendingInResults: true,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.Identity.JWTSecret == "" {
		return errors.New("identity.jwtSecret cannot be empty")
	}
	if c.Identity.TokenTTL <= 0 {
		return errors.New("identity.tokenTtl must be positive")
	}
	if c.Chunking.TargetTokens <= 0 {
		return errors.New("chunking.targetTokens must be positive")
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.TargetTokens {
		return errors.New("chunking.overlapTokens must be non-negative and smaller than targetTokens")
	}
	if c.Embedding.Dimension <= 0 {
		return errors.New("embedding.dimension must be positive")
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 32 {
		return errors.New("embedding.batchSize must be in (0, 32]")
	}
	if c.Coordinator.MaxConcurrentBuilds <= 0 {
		return errors.New("coordinator.maxConcurrentBuilds must be positive")
	}
	if c.Coordinator.MaxObjectBytes <= 0 {
		return errors.New("coordinator.maxObjectBytes must be positive")
	}
	if c.Valkey.Enabled && strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Retrieve.VectorK <= 0 {
		return errors.New("retrieve.vectorK must be positive")
	}
	if c.Retrieve.FinalK <= 0 {
		return errors.New("retrieve.finalK must be positive")
	}
	if c.Retrieve.RRFConstant <= 0 {
		return errors.New("retrieve.rrfConstant must be positive")
	}
	return nil
}
