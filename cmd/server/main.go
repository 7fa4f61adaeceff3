package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/vidsync/vidsync/internal/ai"
	"github.com/vidsync/vidsync/internal/api"
	"github.com/vidsync/vidsync/internal/bitable"
	"github.com/vidsync/vidsync/internal/config"
	"github.com/vidsync/vidsync/internal/database"
	"github.com/vidsync/vidsync/internal/normalize"
	"github.com/vidsync/vidsync/internal/reconcile"
	"github.com/vidsync/vidsync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := database.NewDB(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	recordRepo := database.NewRecordRepo(db)
	promptRepo := database.NewPromptRepo(db)

	ctx := context.Background()
	if err := promptRepo.SeedDefaults(ctx); err != nil {
		log.Fatal("Failed to seed default prompts:", err)
	}

	app := &api.App{
		Records:       recordRepo,
		Prompts:       promptRepo,
		UploadDir:     cfg.Server.UploadDir,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		AutoSync:      cfg.Bitable.AutoSync,
	}

	if cfg.GeminiValid() {
		analyzer, err := ai.NewClient(ctx, ai.Config{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			log.Fatal("Failed to create analysis client:", err)
		}
		defer analyzer.Close()
		app.Analyzer = analyzer
		log.Printf("Analysis enabled with model %s", analyzer.Model())
	} else {
		log.Println("GEMINI_API_KEY not set, analysis endpoints disabled")
	}

	if cfg.Bitable.Enabled && cfg.BitableValid() {
		gateway, err := bitable.NewClient(bitable.Config{
			AppID:     cfg.Bitable.AppID,
			AppSecret: cfg.Bitable.AppSecret,
			AppToken:  cfg.Bitable.AppToken,
			TableID:   cfg.Bitable.TableID,
		})
		if err != nil {
			log.Fatal("Failed to create table gateway:", err)
		}
		app.Syncer = reconcile.NewReconciler(recordRepo, gateway, normalize.RecordFields,
			reconcile.WithRecordDelay(200*time.Millisecond))
		log.Println("Remote table sync enabled")
	} else {
		log.Println("Remote table sync disabled")
	}

	if cfg.OSSValid() {
		store, err := storage.NewOSSStorage(storage.OSSConfig{
			Endpoint:        cfg.OSS.Endpoint,
			AccessKeyID:     cfg.OSS.AccessKeyID,
			AccessKeySecret: cfg.OSS.AccessKeySecret,
			Bucket:          cfg.OSS.Bucket,
			Prefix:          cfg.OSS.Prefix,
		})
		if err != nil {
			log.Fatal("Failed to create object storage:", err)
		}
		app.Storage = store
		log.Printf("Object storage enabled, bucket %s", cfg.OSS.Bucket)
	} else {
		log.Println("Object storage disabled")
	}

	router := api.NewRouter(app)

	log.Printf("Starting server on port %s...", cfg.Server.Port)
	if err := http.ListenAndServe(":"+cfg.Server.Port, router); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
