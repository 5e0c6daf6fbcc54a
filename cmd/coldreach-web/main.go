package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const defaultConfigFile = "/etc/coldreach/web.yaml"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "coldreach-web",
	Short: "ColdReach Web - dashboard for cold email outreach",
	Long:  `ColdReach Web serves the outreach dashboard: campaigns, leads, drafts, analytics and the Gmail connection, backed by the hosted backend.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coldreach-web %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "Path to configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
