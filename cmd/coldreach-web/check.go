package main

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the backend accepts a sign in",
	Long:  `Signs in to the configured backend with the given account, lists its campaigns and signs out again.`,
	RunE:  runCheck,
}

var (
	checkEmail    string
	checkPassword string
)

func init() {
	checkCmd.Flags().StringVar(&checkEmail, "email", "", "Account email")
	checkCmd.Flags().StringVar(&checkPassword, "password", "", "Account password (will prompt if not provided)")
	checkCmd.MarkFlagRequired("email")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	// Prompt for password if not provided
	password := checkPassword
	if password == "" {
		fmt.Print("Enter password: ")
		pwBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey)

	sess, err := client.SignInWithPassword(ctx, checkEmail, password)
	if err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	fmt.Printf("Signed in as %s (%s)\n", sess.User.Email, sess.User.ID)

	resp, err := client.ListCampaigns(ctx, sess.AccessToken)
	if err != nil {
		fmt.Printf("  Campaigns: error: %v\n", err)
	} else {
		fmt.Printf("  Campaigns: %d\n", len(resp.Campaigns))
	}

	if err := client.SignOut(ctx, sess.AccessToken); err != nil {
		fmt.Printf("  Sign out: error: %v\n", err)
	}

	fmt.Println("Backend check completed")
	return nil
}
