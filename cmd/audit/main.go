package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"coindex/internal/audit"
	"coindex/internal/catalog"
	"coindex/internal/composition"
	"coindex/internal/migration"
	"coindex/pkg/database"
)

func main() {
	var (
		compsPath = flag.String("compositions", "data/compositions.yaml", "composition registry seed")
		asJSON    = flag.Bool("json", false, "emit the report as JSON instead of log lines")
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

	auditor := audit.New(catalog.NewCoinRepo(db), catalog.NewVariantRepo(db), comps)
	report, err := auditor.Run(ctx)
	if err != nil {
		log.Fatalf("audit failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("encode report: %v", err)
		}
	} else {
		for _, f := range report.Findings {
			log.Printf("[%s] %s: %s", f.Check, f.ID, f.Detail)
		}
		log.Printf("checked %d records, %d findings", report.Checked, len(report.Findings))
	}

	if len(report.Findings) > 0 {
		os.Exit(1)
	}
}
