package main

import (
	"context"
	"flag"
	"log"
	"time"

	"coindex/internal/catalog"
	"coindex/internal/composition"
	"coindex/internal/migration"
	"coindex/pkg/database"
)

func main() {
	var (
		renamesPath = flag.String("renames", "", "optional YAML TYPE-code rename map to apply")
		rulesPath   = flag.String("rules", "", "optional YAML priority-rule seed file to load")
		compsPath   = flag.String("compositions", "data/compositions.yaml", "composition registry seed (validated, not stored)")
		skipBackup  = flag.Bool("no-backup", false, "skip the pre-migration backup (tests only)")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := database.DefaultConfig()

	if !*skipBackup {
		backupPath, err := database.Backup(cfg)
		if err != nil {
			log.Fatalf("backup failed: %v", err)
		}
		if backupPath != "" {
			log.Printf("backed up database to %s", backupPath)
		}
	}

	db := database.MustOpen(cfg)
	defer db.Close()

	if err := migration.Apply(ctx, db); err != nil {
		log.Fatalf("schema migration failed: %v", err)
	}
	log.Printf("schema at version %d", migration.Latest())

	// validate the composition seed even when nothing else changed, so a
	// broken registry fails here and not during export
	if _, err := composition.Load(*compsPath); err != nil {
		log.Fatalf("composition registry invalid: %v", err)
	}

	if *renamesPath != "" {
		renames, err := migration.LoadRenameMap(*renamesPath)
		if err != nil {
			log.Fatalf("load rename map failed: %v", err)
		}
		changed, err := migration.ApplyRenames(ctx, db, renames)
		if err != nil {
			log.Fatalf("apply renames failed: %v", err)
		}
		log.Printf("applied %d identifier renames", changed)
	}

	if *rulesPath != "" {
		rules, err := catalog.LoadRules(*rulesPath)
		if err != nil {
			log.Fatalf("load priority rules failed: %v", err)
		}
		repo := catalog.NewRuleRepo(db)
		for _, rule := range rules {
			if err := repo.Upsert(ctx, rule); err != nil {
				log.Fatalf("load rule failed: %v", err)
			}
		}
		log.Printf("loaded %d priority rules", len(rules))
	}

	log.Printf("✅ migration complete (%s)", cfg.Path)
}
