package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vidsync/vidsync/internal/ai"
	"github.com/vidsync/vidsync/internal/bitable"
	"github.com/vidsync/vidsync/internal/config"
	"github.com/vidsync/vidsync/internal/database"
	"github.com/vidsync/vidsync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("🔍 Checking configured services")
	fmt.Println("================================")

	checkDatabase(ctx, cfg)
	checkGemini(ctx, cfg)
	checkBitable(ctx, cfg)
	checkOSS(ctx, cfg)
}

func checkDatabase(ctx context.Context, cfg *config.Config) {
	db, err := database.NewDB(database.Config{Path: cfg.Database.Path})
	if err != nil {
		fmt.Printf("❌ Database: %v\n", err)
		return
	}
	defer db.Close()

	repo := database.NewRecordRepo(db)
	total, synced, err := repo.SyncCounts(ctx)
	if err != nil {
		fmt.Printf("❌ Database: %v\n", err)
		return
	}
	fmt.Printf("✅ Database: %s (%d records, %d synced)\n", cfg.Database.Path, total, synced)
}

func checkGemini(ctx context.Context, cfg *config.Config) {
	if !cfg.GeminiValid() {
		fmt.Println("⚠️  Gemini: GEMINI_API_KEY not set")
		return
	}

	client, err := ai.NewClient(ctx, ai.Config{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
	if err != nil {
		fmt.Printf("❌ Gemini: %v\n", err)
		return
	}
	defer client.Close()

	files, err := client.ListFiles(ctx)
	if err != nil {
		fmt.Printf("❌ Gemini: %v\n", err)
		return
	}
	fmt.Printf("✅ Gemini: model %s reachable (%d uploaded files)\n", client.Model(), len(files))
}

func checkBitable(ctx context.Context, cfg *config.Config) {
	if !cfg.BitableValid() {
		fmt.Println("⚠️  Bitable: FEISHU_* variables not set")
		return
	}

	client, err := bitable.NewClient(bitable.Config{
		AppID:     cfg.Bitable.AppID,
		AppSecret: cfg.Bitable.AppSecret,
		AppToken:  cfg.Bitable.AppToken,
		TableID:   cfg.Bitable.TableID,
	})
	if err != nil {
		fmt.Printf("❌ Bitable: %v\n", err)
		return
	}

	if err := client.VerifyTable(ctx); err != nil {
		fmt.Printf("❌ Bitable: %v\n", err)
		return
	}
	fmt.Printf("✅ Bitable: table %s reachable\n", cfg.Bitable.TableID)
}

func checkOSS(ctx context.Context, cfg *config.Config) {
	if !cfg.OSSValid() {
		fmt.Println("⚠️  OSS: disabled or OSS_* variables not set")
		return
	}

	store, err := storage.NewOSSStorage(storage.OSSConfig{
		Endpoint:        cfg.OSS.Endpoint,
		AccessKeyID:     cfg.OSS.AccessKeyID,
		AccessKeySecret: cfg.OSS.AccessKeySecret,
		Bucket:          cfg.OSS.Bucket,
		Prefix:          cfg.OSS.Prefix,
	})
	if err != nil {
		fmt.Printf("❌ OSS: %v\n", err)
		return
	}

	if err := store.Verify(ctx); err != nil {
		fmt.Printf("❌ OSS: %v\n", err)
		return
	}
	fmt.Printf("✅ OSS: bucket %s reachable\n", cfg.OSS.Bucket)
}
