package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"
	"golang.org/x/sync/singleflight"

	"github.com/moe-gov/beacon/internal/domain/answerer"
	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
	"github.com/moe-gov/beacon/internal/domain/institution"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	"github.com/moe-gov/beacon/internal/infra/chunker"
	"github.com/moe-gov/beacon/internal/infra/config"
	"github.com/moe-gov/beacon/internal/infra/embedder"
	"github.com/moe-gov/beacon/internal/infra/identitycache"
	"github.com/moe-gov/beacon/internal/infra/keywordsearch"
	"github.com/moe-gov/beacon/internal/infra/llm"
	"github.com/moe-gov/beacon/internal/infra/memorystore"
	"github.com/moe-gov/beacon/internal/infra/memrepo"
	"github.com/moe-gov/beacon/internal/infra/objectstore"
	"github.com/moe-gov/beacon/internal/infra/postgres"
	"github.com/moe-gov/beacon/internal/infra/vectorstore"
)

// providePostgresPool opens the single shared pgx pool every relational
// collaborator reads from, registering pgvector's "vector" OID the same
// way the platform's upload pipeline did. A blank DSN means "run on the
// in-memory fallbacks" and every provider below honors that uniformly.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, running on in-memory repositories")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, running on in-memory repositories", "error", err)
		return nil
	}
	registerPgVector(poolConfig, logger)
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, running on in-memory repositories", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, running on in-memory repositories", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres pool enabled")
	return pool
}

func registerPgVector(poolConfig *pgxpool.Config, logger *slog.Logger) {
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var oid uint32
		if err := conn.QueryRow(ctx, "SELECT 'vector'::regtype::oid").Scan(&oid); err != nil {
			logger.Error("failed to lookup pgvector oid", "error", err)
			return err
		}
		conn.TypeMap().RegisterType(&pgtype.Type{
			Name:  "vector",
			OID:   oid,
			Codec: pgtype.TextCodec{},
		})
		return nil
	}
}

// provideValkeyClient dials the shared cache client backing C2's identity
// cache. Returns nil when valkey is disabled, same nil-means-fallback
// convention as the pool above.
func provideValkeyClient(cfg *config.Config, logger *slog.Logger) valkey.Client {
	if !cfg.Valkey.Enabled {
		logger.Info("valkey disabled, identity cache running in-memory")
		return nil
	}
	addr := strings.TrimSpace(cfg.Valkey.Addr)
	opt, err := buildValkeyOptions(addr)
	if err != nil {
		logger.Error("invalid valkey configuration, identity cache running in-memory", "error", err)
		return nil
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, identity cache running in-memory", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, identity cache running in-memory", "error", err)
		client.Close()
		return nil
	}
	logger.Info("valkey client enabled", "addr", addr)
	return client
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// provideIdentityRepository backs C2's user lookups.
func provideIdentityRepository(pool *pgxpool.Pool, logger *slog.Logger) identity.Repository {
	if pool == nil {
		logger.Warn("identity repository falling back to memory")
		return memrepo.NewIdentityRepository()
	}
	return postgres.NewIdentityRepository(pool)
}

// provideIdentityCache backs the caching decorator's TTL store.
func provideIdentityCache(client valkey.Client, cfg *config.Config) identity.TTLCache {
	if client == nil {
		return identitycache.NewMemoryCache(cfg.Identity.CacheTTL)
	}
	return identitycache.NewValkeyCache(client, "beacon:identity", cfg.Identity.CacheTTL)
}

func provideIdentityConfig(cfg *config.Config) identity.Config {
	return identity.Config{Secret: cfg.Identity.JWTSecret, TokenTTL: cfg.Identity.TokenTTL}
}

// provideIdentityResolver wraps C2's base resolver in the cache +
// singleflight decorator (spec §4.2).
func provideIdentityResolver(base *identity.Service, cache identity.TTLCache) identity.Resolver {
	return identity.NewCachingResolver(base, cache, &singleflight.Group{})
}

// provideInstitutionRepository backs C1.
func provideInstitutionRepository(pool *pgxpool.Pool, logger *slog.Logger) institution.Repository {
	if pool == nil {
		logger.Warn("institution repository falling back to memory")
		return memrepo.NewInstitutionRepository()
	}
	return postgres.NewInstitutionRepository(pool)
}

// provideDocumentRepository backs C3.
func provideDocumentRepository(pool *pgxpool.Pool, logger *slog.Logger) document.Repository {
	if pool == nil {
		logger.Warn("document repository falling back to memory")
		return memrepo.NewDocumentRepository()
	}
	return postgres.NewDocumentRepository(pool)
}

// provideEmbeddingStore backs C7's CAS surface. When the document
// repository itself is the in-memory fallback, the embedding store must
// share its backing maps, so this needs the concrete memrepo type rather
// than the document.Repository interface.
func provideEmbeddingStore(pool *pgxpool.Pool, docRepo document.Repository, logger *slog.Logger) retrieval.EmbeddingStore {
	if pool != nil {
		return postgres.NewEmbeddingStore(pool)
	}
	mem, ok := docRepo.(*memrepo.DocumentRepository)
	if !ok {
		logger.Warn("document repository is not the in-memory fallback, embedding store cannot share state")
		return memrepo.NewEmbeddingStore(memrepo.NewDocumentRepository())
	}
	return memrepo.NewEmbeddingStore(mem)
}

// provideObjectFetcher backs C5.
func provideObjectFetcher(cfg *config.Config, logger *slog.Logger) retrieval.ObjectFetcher {
	endpoint := strings.TrimSpace(cfg.Storage.Endpoint)
	accessKey := strings.TrimSpace(cfg.Storage.AccessKey)
	secretKey := strings.TrimSpace(cfg.Storage.SecretKey)
	bucket := strings.TrimSpace(cfg.Storage.Bucket)
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		logger.Info("object storage not fully configured, using memory fetcher")
		return objectstore.NewMemoryFetcher()
	}
	fetcher, err := objectstore.NewMinioFetcher(endpoint, accessKey, secretKey, bucket, cfg.Storage.Region, cfg.Storage.UseSSL, cfg.Coordinator.MaxObjectBytes, logger)
	if err != nil {
		logger.Error("failed to initialize object storage, using memory fetcher", "error", err)
		return objectstore.NewMemoryFetcher()
	}
	logger.Info("object storage enabled", "endpoint", endpoint, "bucket", bucket)
	return fetcher
}

func provideChunker(cfg *config.Config) retrieval.Chunker {
	return chunker.NewTiktokenChunker(cfg.Chunking.TargetTokens, cfg.Chunking.OverlapTokens)
}

// provideLLMClient constructs the shared OpenAI-compatible client used by
// both the embedder and the planner. A blank API key leaves every
// downstream collaborator on its deterministic/naive fallback.
func provideLLMClient(cfg *config.Config, logger *slog.Logger) *llm.Client {
	if strings.TrimSpace(cfg.Embedding.APIKey) == "" && strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil
	}
	apiKey := cfg.LLM.APIKey
	baseURL := cfg.LLM.BaseURL
	if apiKey == "" {
		apiKey = cfg.Embedding.APIKey
	}
	if baseURL == "" {
		baseURL = cfg.Embedding.BaseURL
	}
	client, err := llm.NewClient(apiKey, baseURL)
	if err != nil {
		logger.Error("failed to construct llm client, falling back to offline collaborators", "error", err)
		return nil
	}
	return client
}

func provideEmbedder(client *llm.Client, cfg *config.Config, logger *slog.Logger) retrieval.Embedder {
	if client == nil || strings.TrimSpace(cfg.Embedding.APIKey) == "" {
		logger.Warn("embedding client unavailable, using deterministic embedder")
		return embedder.NewDeterministicEmbedder(cfg.Embedding.Dimension)
	}
	return embedder.NewOpenAIEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize, logger)
}

func providePlanner(client *llm.Client, cfg *config.Config, logger *slog.Logger) answerer.Planner {
	if client == nil || strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Warn("llm client unavailable, using naive planner")
		return llm.NewNaivePlanner()
	}
	return llm.NewPlanner(client, cfg.LLM.Model, cfg.LLM.Temperature)
}

func provideCoordinatorConfig(cfg *config.Config) retrieval.Config {
	return retrieval.Config{
		RecoveryHorizon:     cfg.Coordinator.RecoveryHorizon,
		MaxConcurrentBuilds: cfg.Coordinator.MaxConcurrentBuilds,
	}
}

func provideHybridConfig(cfg *config.Config) retrieval.HybridConfig {
	return retrieval.HybridConfig{
		VectorLegK:  cfg.Retrieve.VectorK,
		KeywordLegK: cfg.Retrieve.VectorK,
		RRFConstant: float64(cfg.Retrieve.RRFConstant),
	}
}

// provideVectorStore backs C8.
func provideVectorStore(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) retrieval.VectorStore {
	if pool == nil {
		logger.Warn("vector store falling back to memory")
		return vectorstore.NewMemoryStore(cfg.Embedding.Dimension)
	}
	return vectorstore.NewPostgresStore(pool, cfg.Embedding.Dimension)
}

// provideKeywordSearcher backs C9's keyword leg.
func provideKeywordSearcher(pool *pgxpool.Pool, logger *slog.Logger) retrieval.KeywordSearcher {
	if pool == nil {
		logger.Warn("keyword searcher falling back to memory")
		return keywordsearch.NewMemorySearcher()
	}
	return keywordsearch.NewPostgresSearcher(pool)
}

// provideDocumentLookup adapts *document.Service to retrieval.DocumentLookup.
func provideDocumentLookup(svc *document.Service) retrieval.DocumentLookup {
	return svc
}

// provideConversationMemory backs C10's thread replay.
func provideConversationMemory(pool *pgxpool.Pool, logger *slog.Logger) answerer.MemoryStore {
	if pool == nil {
		logger.Warn("conversation memory falling back to in-process store")
		return memorystore.NewMemoryStore()
	}
	return memorystore.NewPostgresStore(pool)
}

func provideAnswererRetriever(h *retrieval.HybridRetriever) answerer.Retriever {
	return h
}

func provideSpecificSearcher(h *retrieval.HybridRetriever) answerer.SpecificSearcher {
	return h
}

func provideDocumentAccess(svc *document.Service) answerer.DocumentAccess {
	return answerer.NewDocumentAccess(svc)
}
