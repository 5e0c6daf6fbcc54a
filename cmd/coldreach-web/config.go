package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/coldreach/internal/web/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Backend: %s\n", cfg.Backend.URL)
	fmt.Printf("  Database path: %s\n", cfg.Database.Path)
	fmt.Printf("  Workspace path: %s\n", cfg.Workspace.Path)
	fmt.Printf("  Query cache: %s\n", cfg.Cache.Backend)
	fmt.Printf("  Draft generator: %s\n", cfg.Generate.Drafts)
	fmt.Printf("  OIDC auth: %v\n", cfg.Auth.OIDC.Enabled)
	if cfg.Auth.OIDC.Enabled {
		fmt.Printf("    - %s (%s)\n", cfg.Auth.OIDC.Provider, cfg.Auth.OIDC.IssuerURL)
	}
	fmt.Printf("  Rate limiting: %v\n", cfg.RateLimit.Enabled)
	if cfg.RateLimit.Enabled {
		fmt.Printf("    - store: %s\n", cfg.RateLimit.Path)
	}
	fmt.Printf("  Metrics: %v\n", cfg.Metrics.Enabled)

	return nil
}
