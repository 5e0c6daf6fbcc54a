package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/coldreach/internal/web/config"
	"github.com/foxzi/coldreach/internal/web/db"
	"github.com/foxzi/coldreach/internal/web/repository"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old data (expired sessions, audit logs)",
	RunE:  runCleanup,
}

var (
	cleanupAuditDays int
	cleanupDryRun    bool
)

func init() {
	cleanupCmd.Flags().IntVar(&cleanupAuditDays, "audit-days", 0, "Delete audit log entries older than N days (default: database.audit_retention)")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be deleted without actually deleting")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if cleanupDryRun {
		fmt.Println("Dry run mode - no data will be deleted")
		fmt.Println()
	}

	now := time.Now()
	if err := cleanupSessions(database, now); err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}

	retention := cfg.Database.AuditRetention
	if cleanupAuditDays > 0 {
		retention = time.Duration(cleanupAuditDays) * 24 * time.Hour
	}
	if err := cleanupAuditLogs(database, now.Add(-retention), retention); err != nil {
		return fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	if !cleanupDryRun {
		fmt.Println("\nCleanup completed")
	}

	return nil
}

func cleanupSessions(database *db.DB, now time.Time) error {
	var count int
	err := database.QueryRow(`SELECT COUNT(*) FROM sessions WHERE expires_at <= ?`, now.UTC()).Scan(&count)
	if err != nil {
		return err
	}

	fmt.Printf("Expired sessions: %d\n", count)

	if !cleanupDryRun && count > 0 {
		deleted, err := repository.NewSessionRepository(database.DB, nil).DeleteExpired(now)
		if err != nil {
			return err
		}
		fmt.Printf("  Deleted: %d\n", deleted)
	}

	return nil
}

func cleanupAuditLogs(database *db.DB, cutoff time.Time, retention time.Duration) error {
	var count int
	err := database.QueryRow(`SELECT COUNT(*) FROM audit_log WHERE created_at < ?`, cutoff.UTC()).Scan(&count)
	if err != nil {
		return err
	}

	fmt.Printf("Audit log entries older than %d days: %d\n", int(retention.Hours()/24), count)

	if !cleanupDryRun && count > 0 {
		deleted, err := repository.NewAuditRepository(database.DB).DeleteOlderThan(cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("  Deleted: %d\n", deleted)
	}

	return nil
}
