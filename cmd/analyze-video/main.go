package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/vidsync/vidsync/internal/ai"
	"github.com/vidsync/vidsync/internal/bitable"
	"github.com/vidsync/vidsync/internal/config"
	"github.com/vidsync/vidsync/internal/database"
	"github.com/vidsync/vidsync/internal/models"
	"github.com/vidsync/vidsync/internal/normalize"
	"github.com/vidsync/vidsync/internal/reconcile"
	"github.com/vidsync/vidsync/internal/storage"
)

func main() {
	var (
		filePath = flag.String("file", "", "path to the video file to analyze")
		prompt   = flag.String("prompt", "", "analysis prompt (default: first stored prompt)")
		promptID = flag.Int64("prompt-id", 0, "stored prompt id to use")
		upload   = flag.Bool("upload", false, "upload the file to object storage after analysis")
		sync     = flag.Bool("sync", false, "push the record to the remote table after analysis")
	)
	flag.Parse()

	if *filePath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*filePath); err != nil {
		log.Fatal("Cannot read video file:", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if !cfg.GeminiValid() {
		log.Fatal("GEMINI_API_KEY is not set")
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

	promptText, err := resolvePrompt(ctx, promptRepo, *prompt, *promptID)
	if err != nil {
		log.Fatal(err)
	}

	analyzer, err := ai.NewClient(ctx, ai.Config{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
	if err != nil {
		log.Fatal("Failed to create analysis client:", err)
	}
	defer analyzer.Close()

	fmt.Printf("Analyzing %s with model %s...\n", filepath.Base(*filePath), analyzer.Model())
	start := time.Now()
	analysis, err := analyzer.AnalyzeVideo(ctx, *filePath, promptText)
	if err != nil {
		log.Fatal("Analysis failed:", err)
	}
	fmt.Printf("Analysis finished in %s\n\n", time.Since(start).Round(time.Second))
	fmt.Println(analysis.Text)
	fmt.Println()

	info, err := os.Stat(*filePath)
	if err != nil {
		log.Fatal("Cannot stat video file:", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(*filePath))

	record := models.NewAnalysisRecord(*filePath, filepath.Base(*filePath), info.Size(), mimeType, promptText, analysis.Text)
	if err := recordRepo.Insert(ctx, record); err != nil {
		log.Fatal("Failed to store record:", err)
	}
	fmt.Printf("Stored record %s\n", record.SequenceID)

	if *upload {
		if !cfg.OSSValid() {
			log.Fatal("Object storage is not configured")
		}
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
		result, err := store.Upload(ctx, *filePath)
		if err != nil {
			log.Fatal("Upload failed:", err)
		}
		if err := recordRepo.SetStorageURL(ctx, record.SequenceID, result.URL, result.Key); err != nil {
			log.Fatal("Failed to persist storage url:", err)
		}
		fmt.Printf("Uploaded to %s\n", result.URL)
	}

	if *sync {
		if !cfg.BitableValid() {
			log.Fatal("Remote table is not configured")
		}
		gateway, err := bitable.NewClient(bitable.Config{
			AppID:     cfg.Bitable.AppID,
			AppSecret: cfg.Bitable.AppSecret,
			AppToken:  cfg.Bitable.AppToken,
			TableID:   cfg.Bitable.TableID,
		})
		if err != nil {
			log.Fatal("Failed to create table gateway:", err)
		}
		reconciler := reconcile.NewReconciler(recordRepo, gateway, normalize.RecordFields)
		if _, err := reconciler.SyncOne(ctx, record.SequenceID); err != nil {
			log.Fatal("Sync failed:", err)
		}
		fmt.Println("Record synced to remote table")
	}
}

func resolvePrompt(ctx context.Context, repo *database.PromptRepo, prompt string, promptID int64) (string, error) {
	if prompt != "" {
		return prompt, nil
	}
	if promptID > 0 {
		p, err := repo.GetByID(ctx, promptID)
		if err != nil {
			return "", fmt.Errorf("prompt %d not found", promptID)
		}
		return p.PromptText, nil
	}
	prompts, err := repo.List(ctx)
	if err != nil || len(prompts) == 0 {
		return "", fmt.Errorf("no prompt given and no stored prompts available")
	}
	return prompts[0].PromptText, nil
}
