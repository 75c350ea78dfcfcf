package main

import (
	"context"
	"flag"
	"log"
	"time"

	"coindex/internal/catalog"
	"coindex/internal/composition"
	"coindex/internal/export"
	"coindex/internal/migration"
	"coindex/internal/resolver"
	"coindex/pkg/database"
)

func main() {
	var (
		outDir    = flag.String("out", "data/export", "output directory for JSON views")
		compsPath = flag.String("compositions", "data/compositions.yaml", "composition registry seed")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := migration.Apply(ctx, db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	comps, err := composition.Load(*compsPath)
	if err != nil {
		log.Fatalf("load compositions failed: %v", err)
	}

	coins := catalog.NewCoinRepo(db)
	variants := catalog.NewVariantRepo(db)
	svc := export.NewService(coins, variants, resolver.New(variants), comps)

	stats, err := svc.WriteAll(ctx, *outDir)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}

	log.Printf("✅ exported %d coins across %d files to %s (%d skipped)",
		stats.Coins, stats.Files, *outDir, stats.Skipped)
}
