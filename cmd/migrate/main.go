package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"lprserver/internal/plate"
	"lprserver/internal/repository/jsonfile"
	"lprserver/internal/repository/sqlite"
)

func main() {
	platesPath := flag.String("plates", "authorized_plates.json", "Authorized plates JSON file")
	dbPath := flag.String("db", "data/lrs.db", "Database path")
	flag.Parse()

	fmt.Printf("Migrating authorized plates from %s to database %s\n", *platesPath, *dbPath)

	if _, err := os.Stat(*platesPath); err != nil {
		log.Fatalf("Cannot read plates file: %v", err)
	}

	source, err := jsonfile.NewPlateRepository(*platesPath)
	if err != nil {
		log.Fatalf("Failed to open plates file: %v", err)
	}
	plates, err := source.All()
	if err != nil {
		log.Fatalf("Failed to read plates: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var normalized []string
	skipped := 0
	for _, p := range plates {
		n := plate.Normalize(p)
		if n == "" {
			log.Printf("Skipping %q: empty after normalization", p)
			skipped++
			continue
		}
		if n != p {
			log.Printf("Normalized %q -> %q", p, n)
		}
		normalized = append(normalized, n)
	}

	if len(normalized) == 0 {
		fmt.Println("No plates found to migrate")
		return
	}

	target := sqlite.NewPlateRepository(db)
	fmt.Printf("Inserting %d plates into database...\n", len(normalized))
	if err := target.InsertBatch(normalized); err != nil {
		log.Fatalf("Failed to insert plates: %v", err)
	}

	stored, err := target.All()
	if err != nil {
		log.Fatalf("Failed to count stored plates: %v", err)
	}

	fmt.Printf("Migrated %d plates\n", len(normalized))
	if skipped > 0 {
		fmt.Printf("Skipped %d entries\n", skipped)
	}
	fmt.Printf("Authorized plates in database: %d\n", len(stored))
}
