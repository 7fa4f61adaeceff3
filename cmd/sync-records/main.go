package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/vidsync/vidsync/internal/bitable"
	"github.com/vidsync/vidsync/internal/config"
	"github.com/vidsync/vidsync/internal/database"
	"github.com/vidsync/vidsync/internal/normalize"
	"github.com/vidsync/vidsync/internal/reconcile"
)

func main() {
	var (
		status   = flag.Bool("status", false, "print sync status and exit")
		all      = flag.Bool("all", false, "also re-push records that are already synced")
		recordID = flag.String("record", "", "sync a single record by sequence id")
		delay    = flag.Duration("delay", 200*time.Millisecond, "pause between records")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if !cfg.BitableValid() {
		log.Fatal("Remote table is not configured: set FEISHU_APP_ID, FEISHU_APP_SECRET, FEISHU_APP_TOKEN, FEISHU_TABLE_ID")
	}

	db, err := database.NewDB(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	recordRepo := database.NewRecordRepo(db)

	gateway, err := bitable.NewClient(bitable.Config{
		AppID:     cfg.Bitable.AppID,
		AppSecret: cfg.Bitable.AppSecret,
		AppToken:  cfg.Bitable.AppToken,
		TableID:   cfg.Bitable.TableID,
	})
	if err != nil {
		log.Fatal("Failed to create table gateway:", err)
	}

	reconciler := reconcile.NewReconciler(recordRepo, gateway, normalize.RecordFields,
		reconcile.WithRecordDelay(*delay))

	ctx := context.Background()

	if *status {
		s, err := reconciler.Status(ctx)
		if err != nil {
			log.Fatal("Failed to compute status:", err)
		}
		fmt.Printf("Total records:    %d\n", s.TotalRecords)
		fmt.Printf("Synced records:   %d\n", s.SyncedRecords)
		fmt.Printf("Unsynced records: %d\n", s.UnsyncedRecords)
		fmt.Printf("Sync rate:        %.1f%%\n", s.SyncRate)
		return
	}

	if err := gateway.VerifyTable(ctx); err != nil {
		log.Fatal("Table verification failed:", err)
	}

	if *recordID != "" {
		if _, err := reconciler.SyncOne(ctx, *recordID); err != nil {
			log.Fatal("Sync failed:", err)
		}
		fmt.Printf("Record %s synced\n", *recordID)
		return
	}

	stats, err := reconciler.SyncAll(ctx, *all)
	if err != nil {
		log.Fatal("Batch sync failed:", err)
	}
	fmt.Printf("Created: %d, Updated: %d, Failed: %d\n", stats.Created, stats.Updated, stats.Failed)
}
