package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/philippgille/chromem-go"

	"medassist/internal/api"
	"medassist/internal/auth"
	"medassist/internal/config"
	"medassist/internal/consent"
	"medassist/internal/docstore"
	"medassist/internal/intent"
	"medassist/internal/memory"
	"medassist/internal/redis"
	"medassist/internal/responder"
	"medassist/internal/service/llm"
	"medassist/internal/storage"
	"medassist/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("MEDASSIST_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	driver := pickDriver(cfg)
	db, err := storage.Open(driver, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, driver); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Printf("redis unavailable, token cache disabled: %v", err)
		} else {
			defer rdb.Close()
		}
	}

	ctx := context.Background()
	llmClient, err := llm.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("create llm client: %v", err)
	}

	embed := chromem.NewEmbeddingFuncOpenAICompat(
		cfg.DocStore.EmbeddingBaseURL,
		cfg.DocStore.EmbeddingAPIKey,
		cfg.DocStore.EmbeddingModel,
		nil,
	)
	docs, err := docstore.NewPersistent(cfg.DocStore.PersistDir, embed)
	if err != nil {
		log.Fatalf("open docstore: %v", err)
	}
	log.Printf("docstore ready with %d chunks", docs.Count())

	authSvc := auth.NewService(db, rdb, 24*time.Hour)
	turns := storage.NewTurnStore(db)

	chat := responder.New(
		consent.NewGate(db),
		intent.NewClassifier(llmClient),
		memory.NewStore(db),
		docs,
		llmClient,
		turns,
		responder.Config{
			BatchPairs: cfg.Chat.BatchSize,
			CacheTTL:   time.Duration(cfg.Chat.CacheMinutes) * time.Minute,
			TopK:       cfg.Chat.TopK,
		},
	)

	dispatcher := worker.NewDispatcher(worker.Config{MaxWorkers: 8, QueueSize: 16})
	defer dispatcher.Stop()

	handler := api.NewHandler(authSvc, chat, turns, dispatcher, cfg.Chat.DefaultLanguage)
	router := gin.Default()
	handler.Register(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("run server: %v", err)
	}
}

func pickDriver(cfg *config.Config) string {
	for _, name := range []string{"sqlite", "sqlite3", "mysql"} {
		if _, ok := cfg.Databases[name]; ok {
			return name
		}
	}
	log.Fatal("no supported database configured")
	return ""
}
