package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/rag-pipeline/internal/config"
	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/core/ports"
	"github.com/kirillkom/rag-pipeline/internal/core/usecase"
	"github.com/kirillkom/rag-pipeline/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/rag-pipeline/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/rag-pipeline/internal/infrastructure/queue/nats"
	"github.com/kirillkom/rag-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/rag-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/rag-pipeline/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	AskUC    ports.QuestionService
	SubmitUC ports.QuestionSubmitter
	Queue    *nats.Queue

	closeFn func(context.Context)
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	mode, ok := domain.ParseRetrievalMode(cfg.RAGRetrievalMode)
	if !ok {
		return nil, fmt.Errorf("unknown retrieval mode %q", cfg.RAGRetrievalMode)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	lexicalRepo := postgres.NewLexicalRepository(db)
	if err := lexicalRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	ollamaClient := ollama.NewWithExecutor(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL)

	retriever, err := usecase.NewRetriever(embedder, vectorDB, lexicalRepo, usecase.RetrieverConfig{
		Mode:       mode,
		RRFK:       cfg.RAGFusionRRFK,
		RerankTopN: cfg.RAGRerankTopN,
	})
	if err != nil {
		return nil, fmt.Errorf("build retriever: %w", err)
	}

	searcher, err := usecase.NewSelfCorrectingSearcher(retriever, generator, cfg.RAGMaxIterations)
	if err != nil {
		return nil, fmt.Errorf("build searcher: %w", err)
	}

	var graphStore *neo4j.Store
	var graphSearcher *usecase.GraphSearcher
	if cfg.GraphEnabled {
		graphStore, err = neo4j.New(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return nil, fmt.Errorf("init graph store: %w", err)
		}
		extractor := ollama.NewEntityExtractor(ollamaClient)
		graphSearcher, err = usecase.NewGraphSearcher(extractor, graphStore, lexicalRepo, cfg.GraphTraversalHops, cfg.RAGFusionRRFK)
		if err != nil {
			return nil, fmt.Errorf("build graph searcher: %w", err)
		}
	}

	searchStep, err := usecase.NewSearchStep(searcher, graphSearcher, usecase.SearchStepConfig{
		SelfCorrect: cfg.RAGSelfCorrect,
	})
	if err != nil {
		return nil, fmt.Errorf("build search step: %w", err)
	}

	answerStep, err := usecase.NewAnswerStep(generator, usecase.AnswerStepConfig{
		Correct:        cfg.RAGAnswerCorrect,
		MaxCorrections: cfg.RAGMaxCorrections,
	})
	if err != nil {
		return nil, fmt.Errorf("build answer step: %w", err)
	}

	steps := make([]usecase.Step, 0, 3)
	if cfg.RAGDecompose {
		decomposeStep, err := usecase.NewDecomposeStep(generator, 0)
		if err != nil {
			return nil, fmt.Errorf("build decompose step: %w", err)
		}
		steps = append(steps, decomposeStep)
	}
	steps = append(steps, searchStep, answerStep)

	askUC := usecase.NewAskUseCase(usecase.NewPipeline(steps...), domain.PipelineConfig{
		Limit:         cfg.RAGTopK,
		Threshold:     cfg.RAGThreshold,
		MaxIterations: cfg.RAGMaxIterations,
	})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSQuestionSubject, cfg.NATSResultSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init question queue: %w", err)
	}

	submitUC, err := usecase.NewSubmitQuestionUseCase(queue)
	if err != nil {
		return nil, fmt.Errorf("build submit use case: %w", err)
	}

	return &App{
		Config: cfg,

		AskUC:    askUC,
		SubmitUC: submitUC,
		Queue:    queue,

		closeFn: func(ctx context.Context) {
			queue.Close()
			_ = db.Close()
			if graphStore != nil {
				_ = graphStore.Close(ctx)
			}
		},
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if a.closeFn != nil {
		a.closeFn(ctx)
	}
}
