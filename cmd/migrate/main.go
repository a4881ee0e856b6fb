package main

import (
	"flag"
	"log"
	"os"

	"chatedge-be/internal/config"
	"chatedge-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	status := flag.Bool("status", false, "print row counts after migrating")
	flag.Parse()

	// 1. Load configuration
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		color.Red("Error: DB_CONNECTION_STRING is not set")
		os.Exit(1)
	}

	// 2. Connect using the shared GORM helper
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 3. Tables
	color.Cyan("Step 1: Running AutoMigrate for users, chat_sessions, chat_messages...")
	if err := database.Migrate(db); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	// 4. Views
	color.Cyan("Step 2: Creating views...")
	postMigrationSQL := []string{
		`CREATE OR REPLACE VIEW chat_session_overview AS
		 SELECT s.id AS chat_session_id, s.user_id, u.email, s.title,
		        COUNT(m.id) AS message_count, s.updated_at
		 FROM chat_sessions s
		 JOIN users u ON u.id = s.user_id
		 LEFT JOIN chat_messages m ON m.chat_session_id = s.id
		 WHERE s.deleted_at IS NULL
		 GROUP BY s.id, u.email;`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			color.Yellow("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	if *status {
		for _, table := range []string{"users", "chat_sessions", "chat_messages"} {
			var n int64
			if err := db.Table(table).Count(&n).Error; err != nil {
				color.Yellow("Warn: count %s: %v", table, err)
				continue
			}
			color.White("  %-14s %d rows", table, n)
		}
	}

	color.Green("Success: database migration completed")
}
