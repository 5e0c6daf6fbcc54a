package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/coldreach/internal/web/config"
	"github.com/foxzi/coldreach/internal/web/db"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Signed-in session commands",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active sessions",
	RunE:  runSessionsList,
}

var sessionsRevokeCmd = &cobra.Command{
	Use:   "revoke [email]",
	Short: "Sign a user out of every browser",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRevoke,
}

var sessionsRevokeYes bool

func init() {
	sessionsRevokeCmd.Flags().BoolVarP(&sessionsRevokeYes, "yes", "y", false, "Do not ask for confirmation")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRevokeCmd)
}

func openDatabase() (*db.DB, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return db.New(cfg.Database.Path)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	rows, err := database.Query(
		"SELECT id, email, created_at, expires_at FROM sessions WHERE expires_at > ? ORDER BY created_at",
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Printf("%-36s  %-30s  %-20s  %s\n", "ID", "Email", "Created", "Expires")
	fmt.Println(strings.Repeat("-", 110))

	for rows.Next() {
		var id, email string
		var createdAt, expiresAt time.Time
		if err := rows.Scan(&id, &email, &createdAt, &expiresAt); err != nil {
			return err
		}
		fmt.Printf("%-36s  %-30s  %-20s  %s\n", id, email,
			createdAt.Local().Format("2006-01-02 15:04"), expiresAt.Local().Format("2006-01-02 15:04"))
	}

	return rows.Err()
}

func runSessionsRevoke(cmd *cobra.Command, args []string) error {
	email := args[0]

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	if !sessionsRevokeYes {
		fmt.Printf("Sign %s out of every browser? [y/N]: ", email)
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled")
			return nil
		}
	}

	result, err := database.Exec("DELETE FROM sessions WHERE email = ?", email)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("no sessions for %s", email)
	}

	fmt.Printf("Revoked %d sessions of %s\n", affected, email)
	return nil
}
