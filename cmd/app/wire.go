//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/moe-gov/beacon/internal/bootstrap"
	"github.com/moe-gov/beacon/internal/core"
	"github.com/moe-gov/beacon/internal/domain/answerer"
	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
	"github.com/moe-gov/beacon/internal/domain/institution"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	"github.com/moe-gov/beacon/internal/infra/config"
	"github.com/moe-gov/beacon/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,

		providePostgresPool,
		provideValkeyClient,

		provideIdentityConfig,
		provideIdentityRepository,
		provideIdentityCache,
		identity.NewService,
		provideIdentityResolver,

		provideInstitutionRepository,
		institution.NewService,

		provideDocumentRepository,
		document.NewService,
		wire.Bind(new(document.HierarchyChecker), new(*institution.Service)),

		provideEmbeddingStore,
		provideObjectFetcher,
		provideChunker,
		provideLLMClient,
		provideEmbedder,
		providePlanner,
		provideCoordinatorConfig,
		retrieval.NewCoordinator,

		provideVectorStore,
		provideKeywordSearcher,
		provideHybridConfig,
		provideDocumentLookup,
		retrieval.NewHybridRetriever,

		provideConversationMemory,
		provideAnswererRetriever,
		provideSpecificSearcher,
		provideDocumentAccess,
		answerer.NewService,

		core.New,
		bootstrap.NewApp,
	)
	return nil, nil
}
