package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"poem-backend/internal/config"
	"poem-backend/internal/database"
)

// Applies one migration file to the configured database. Tenant-schema
// migrations carry a {{schema}} placeholder; pass the target schema as
// the second argument to instantiate it.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <migration_file.sql> [schema]", os.Args[0])
	}

	sqlContent, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read migration file: %v", err)
	}
	script := string(sqlContent)
	if strings.Contains(script, "{{schema}}") {
		if len(os.Args) < 3 {
			log.Fatalf("Migration needs a target schema: %s <migration_file.sql> <schema>", os.Args[0])
		}
		script = strings.ReplaceAll(script, "{{schema}}", os.Args[2])
	}

	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	statements := strings.Split(script, ";")
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		fmt.Printf("Executing statement %d/%d...\n", i+1, len(statements))
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Failed to execute statement %d: %v", i+1, err)
		}
	}
	fmt.Println("Migration completed successfully")
}
