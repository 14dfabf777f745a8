package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/rag-pipeline/internal/bootstrap"
	"github.com/kirillkom/rag-pipeline/internal/config"
	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/observability/logging"
	"github.com/kirillkom/rag-pipeline/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("rag-worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	workerMetrics := metrics.NewWorkerMetrics("rag-worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSQuestionSubject)
	err = app.Queue.SubscribeQuestions(ctx, func(handlerCtx context.Context, job domain.QuestionJob) error {
		workerMetrics.StartQuestion()
		workerMetrics.ObserveQueueLag("rag-worker", time.Since(job.SubmittedAt))
		start := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		out, askErr := app.AskUC.Ask(processCtx, domain.AskRequest{
			Question:    job.Question,
			Collections: job.Collections,
			Limit:       job.Limit,
		})
		workerMetrics.FinishQuestion("rag-worker", time.Since(start), askErr)

		result := domain.QuestionResult{
			ID:          job.ID,
			Question:    job.Question,
			CompletedAt: time.Now().UTC(),
		}
		if askErr != nil {
			result.Error = askErr.Error()
		} else {
			result.Answer = out.Answer
			result.ContextUsed = out.ContextUsed
		}

		if err := app.Queue.PublishResult(processCtx, result); err != nil {
			slog.Error("publish result failed", "job_id", job.ID, "error", err)
			return err
		}
		return askErr
	})
	if err != nil {
		slog.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}
