// Package main is a diagnostic tool for database connectivity. It loads the
// server configuration, connects, and prints the schema version together with
// community and user counts. It exits non-zero on any failure so it can gate
// deployments.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		log.Fatalf("Failed to read migration version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty=%v)\n", version, dirty)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, table := range []string{"communities", "users", "memberships", "posts"} {
		var n int
		if err := database.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			log.Fatalf("Failed to count %s: %v", table, err)
		}
		fmt.Printf("%-12s %d\n", table+":", n)
	}
}
