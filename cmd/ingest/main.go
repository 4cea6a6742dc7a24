package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"zerotrust-rag/internal/cache"
	"zerotrust-rag/internal/config"
	"zerotrust-rag/internal/ingest"
	"zerotrust-rag/internal/platform/awsx"
	redisClient "zerotrust-rag/internal/platform/redis"
	"zerotrust-rag/internal/redact"
)

func main() {
	filesFlag := flag.String("files", "", "comma-separated document paths (default: config ingest.files)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if cfg.AWS.SourceBucket == "" || cfg.AWS.KnowledgeBaseID == "" {
		log.Fatal("aws.source_bucket and aws.knowledge_base_id must be configured")
	}

	paths := cfg.Ingest.Files
	if *filesFlag != "" {
		paths = nil
		for _, p := range strings.Split(*filesFlag, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				paths = append(paths, trimmed)
			}
		}
	}
	if len(paths) == 0 {
		log.Fatal("no documents to ingest")
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("connect redis failed: %v", err)
	}
	defer redisCli.Close()

	awsClients, err := awsx.New(ctx, cfg.AWS.Region)
	if err != nil {
		log.Fatalf("init aws clients failed: %v", err)
	}

	redactor := redact.NewRedactor(
		redact.NewComprehendDetector(awsClients.Comprehend),
		redact.DefaultRecognizers(),
	)
	answerCache := cache.NewAnswerCache(redisCli, time.Duration(cfg.Cache.AnswerTTLSeconds)*time.Second)

	service := ingest.NewService(
		redactor,
		awsClients.S3,
		awsClients.BedrockAgent,
		answerCache,
		cfg.AWS.SourceBucket,
		cfg.AWS.KnowledgeBaseID,
	)

	log.Printf("starting ingestion to knowledge base %s", cfg.AWS.KnowledgeBaseID)
	result, err := service.Run(ctx, paths)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}

	log.Printf("cleared %d cached answers", result.CacheCleared)
	for _, f := range result.Files {
		log.Printf("uploaded %s (access_level=%s)", f.Key, f.Level)
	}
	if result.SyncConflict {
		log.Print("sync job already running; uploaded documents will be indexed by it")
	} else {
		log.Printf("sync job started: %s", result.SyncJobID)
	}
}
