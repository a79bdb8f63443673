package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docguard/internal/config"
	"docguard/internal/server"
	"docguard/internal/session"
	"docguard/internal/util"
	"docguard/pkg/ai"
	"docguard/pkg/analysis"
	"docguard/pkg/chat"
	"docguard/pkg/extract"
	"docguard/pkg/lifecycle"
	"docguard/pkg/queue"
	"docguard/pkg/retry"
	"docguard/pkg/storage"
	"docguard/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	docStore, err := newStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	objects, err := newObjectStore(cfg)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}
	jobQueue, err := newJobQueue(cfg)
	if err != nil {
		log.Fatalf("failed to init queue: %v", err)
	}

	generator, err := newGenerator(cfg)
	if err != nil {
		log.Fatalf("failed to init ai generator: %v", err)
	}
	policy := retry.NewPolicy(cfg.RetryMax, time.Duration(cfg.RetryDelayMs)*time.Millisecond, ai.IsRetryable)
	analyzer, err := analysis.NewAnalyzer(generator, policy)
	if err != nil {
		log.Fatalf("failed to init analyzer: %v", err)
	}
	chatMgr, err := chat.NewManager(generator, policy)
	if err != nil {
		log.Fatalf("failed to init chat manager: %v", err)
	}
	orchestrator, err := lifecycle.NewOrchestrator(docStore, analyzer, lifecycle.Config{
		AllowedExtensions: cfg.AllowedExtensions,
		MaxUploadBytes:    cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init orchestrator: %v", err)
	}

	tokens, err := session.NewTokenManager(session.Config{
		Secret: cfg.SessionSecret,
		TTL:    time.Duration(cfg.SessionTTLHours) * time.Hour,
	}, session.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword))
	if err != nil {
		log.Fatalf("failed to init session tokens: %v", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer, err := server.New(server.Config{
		Store:                    docStore,
		Tokens:                   tokens,
		Orchestrator:             orchestrator,
		Chat:                     chatMgr,
		Objects:                  objects,
		Queue:                    jobQueue,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		LoginRateLimitPerMinute:  cfg.LoginRateLimit,
		UploadRateLimitPerMinute: cfg.UploadRateLimit,
		ChatRateLimitPerMinute:   cfg.ChatRateLimit,
		MaxUploadBytes:           cfg.MaxUploadBytes,
		TrustedProxies:           trustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Analysis worker: fetch the stored file, extract text, finalize the
	// document.
	jobQueue.Start(ctx, cfg.QueueConcurrency, func(ctx context.Context, job queue.JobStatus) error {
		doc, ok, err := docStore.GetDocument(job.DocumentID)
		if err != nil {
			return fmt.Errorf("load document: %w", err)
		}
		if !ok {
			slog.Warn("queued document no longer exists", "document_id", job.DocumentID)
			return nil
		}
		data, err := objects.Get(ctx, doc.StorageKey)
		if err != nil {
			return fmt.Errorf("fetch upload: %w", err)
		}
		text, err := extract.Text(doc.FileName, data)
		if err != nil {
			// Extraction failures are not transient; fail the record now.
			cause := fmt.Errorf("%w: %v", lifecycle.ErrUnreadableDocument, err)
			if errors.Is(err, extract.ErrNoText) {
				cause = lifecycle.ErrEmptyDocument
			}
			if _, err := orchestrator.FailDocument(ctx, doc.ID, cause); err != nil {
				return fmt.Errorf("fail document: %w", err)
			}
			return nil
		}
		if _, err := orchestrator.ProcessDocument(ctx, doc.ID, text); err != nil {
			return fmt.Errorf("process document: %w", err)
		}
		return nil
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

func newStore(cfg config.FileConfig) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("databaseURL not set; using in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.NewGormStore(cfg.DatabaseURL)
}

func newObjectStore(cfg config.FileConfig) (storage.ObjectStore, error) {
	if cfg.StorageBackend == "minio" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewFileStore(cfg.DiskStoreRoot)
}

func newJobQueue(cfg config.FileConfig) (queue.JobQueue, error) {
	if cfg.QueueBackend == "amqp" {
		return queue.NewAmqpJobQueue(queue.AmqpQueueConfig{
			URL:        cfg.AmqpURL,
			Queue:      cfg.AmqpQueue,
			MaxRetries: cfg.QueueMaxRetries,
		})
	}
	return queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		Stream:     cfg.QueueStream,
		Group:      cfg.QueueGroup,
		MaxRetries: cfg.QueueMaxRetries,
	})
}

// aiGenerator is the provider surface the analyzer and chat manager need.
type aiGenerator interface {
	ai.StructuredGenerator
	ai.ChatGenerator
}

func newGenerator(cfg config.FileConfig) (aiGenerator, error) {
	if cfg.AIProvider == "openai" {
		return ai.NewOpenAICompatGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	}
	client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	return ai.NewGeminiGenerator(client, cfg.GeminiModel), nil
}
