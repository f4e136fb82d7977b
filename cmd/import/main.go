package main

import (
	"context"
	"flag"
	"log"

	"sacolao-service/config"
	"sacolao-service/internal/importer"
	"sacolao-service/internal/store"
	"sacolao-service/internal/util"
)

func main() {
	path := flag.String("file", "", "path to the products CSV file")
	flag.Parse()

	if *path == "" {
		log.Fatal("usage: import -file products.csv")
	}

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	report, err := importer.NewImporter(db).Run(context.Background(), *path)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Printf("Import done: %d imported, %d failed", report.Imported, report.Failed)
}
