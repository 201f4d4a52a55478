package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geocat-project/geocat/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
	Long:  "Run and manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	Long:  "Apply all pending database migrations from the migrations/ directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := migrateDB()
		if err != nil {
			return err
		}
		defer db.Close()

		applied, files, err := migrationState(db)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No migration files found in migrations/")
			return nil
		}

		pending := 0
		for _, file := range files {
			name := filepath.Base(file)
			if applied[name] {
				continue
			}
			pending++
			fmt.Printf("Applying migration: %s\n", name)

			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read migration %s: %w", name, err)
			}

			tx, err := db.Begin()
			if err != nil {
				return fmt.Errorf("failed to start transaction: %w", err)
			}
			if _, err := tx.Exec(string(content)); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %s failed: %w", name, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to record migration %s: %w", name, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit migration %s: %w", name, err)
			}
			fmt.Printf("  ✓ Applied %s\n", name)
		}

		if pending == 0 {
			fmt.Println("No pending migrations")
		} else {
			fmt.Printf("\n✓ Applied %d migration(s)\n", pending)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  "Display which migrations have been applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := migrateDB()
		if err != nil {
			return err
		}
		defer db.Close()

		applied, files, err := migrationState(db)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No migration files found in migrations/")
			return nil
		}

		fmt.Println("Migration Status:")
		fmt.Println(strings.Repeat("-", 60))
		for _, file := range files {
			name := filepath.Base(file)
			status, icon := "pending", "○"
			if applied[name] {
				status, icon = "applied", "✓"
			}
			fmt.Printf("%s %s [%s]\n", icon, name, status)
		}
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("Total: %d migrations (%d applied, %d pending)\n",
			len(files), len(applied), len(files)-len(applied))
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func migrateDB() (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return db, nil
}

func migrationState(db *sql.DB) (map[string]bool, []string, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, nil, err
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)
	return applied, files, nil
}
