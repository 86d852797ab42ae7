package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Valecer/market-sub000/internal/config"
	"github.com/Valecer/market-sub000/internal/logging"
	"github.com/Valecer/market-sub000/internal/match"
	"github.com/Valecer/market-sub000/internal/queue"
	"github.com/Valecer/market-sub000/internal/semantic"
	"github.com/Valecer/market-sub000/internal/storage"
	"github.com/Valecer/market-sub000/internal/syncer"
)

const (
	taskStream = "pricesync:tasks"
	taskGroup  = "matchers"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New("matchworker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	must(err)
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()

	consumer := "matchworker-" + uuid.NewString()[:8]
	q := queue.New(rdb, taskStream, taskGroup, consumer, log)
	dlq := queue.NewRedisDeadLetter(rdb, cfg.DeadLetterTTL)
	retry := queue.NewRetryEngine(cfg.RetryDelays, dlq, log)

	matcher := match.NewMatcher(cfg.AutoThreshold, cfg.ReviewThreshold, cfg.MaxCandidates)
	classifier := match.NewRuleClassifier(match.DefaultRules())

	var reranker syncer.Reranker
	if cfg.OpenAIAPIKey != "" {
		reranker = semantic.NewReranker(cfg.OpenAIAPIKey, cfg.SemanticModel, 2, log)
		log.Info().Str("model", cfg.SemanticModel).Msg("semantic reranker enabled")
	}

	handler := syncer.NewMatchTaskHandler(db, matcher, classifier, reranker, cfg.ReviewTTL, cfg.ClaimBatch, log)

	pool := queue.NewPool(q, retry, cfg.WorkerCount, cfg.TaskTimeout, cfg.MaxTries, log)
	pool.Register(queue.KindMatchSupplier, handler)

	log.Info().Str("consumer", consumer).Msg("match worker starting")
	if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker pool stopped")
		os.Exit(1)
	}
	log.Info().Msg("match worker shut down")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
