package cmd

import (
	"fmt"
	"os"

	"chatctl/internal"
	"github.com/spf13/cobra"
)

var (
	verbose       bool
	cfgFile       string
	apiBase       string
	docqaBase     string
	analyticsBase string
	dataDir       string
	version       string = "dev"
	commit        string = "unknown"
	date          string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Chat with the assistant platform from your terminal",
	Long: `A CLI client for the chat platform: conversations, document-grounded
answers, web search and the admin dashboard.

Features:
  • Log in and chat with the assistant, with conversation history
  • Attach documents so answers are grounded in your own files
  • Search the web for fresh answers with cited sources
  • Export conversations (JSONL, Markdown, YAML, JSON)
  • Admin dashboard: usage stats, user management, latency metrics

Quick Start:
  chatctl login you@example.com          # Authenticate
  chatctl chat "Bonjour !"               # Start a conversation
  chatctl history                        # List your conversations
  chatctl chat -c 42 "Et ensuite ?"      # Continue conversation 42`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.config/chatctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "", "Orchestrator base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&docqaBase, "docqa", "", "Document backend base URL (default http://localhost:5000)")
	rootCmd.PersistentFlags().StringVar(&analyticsBase, "analytics", "", "Analytics backend base URL (default: same as --docqa)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Local data directory (default ~/.chatctl)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig resolves the configuration, applying flag overrides on top
func loadConfig() (*internal.Config, error) {
	cfg, err := internal.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if apiBase != "" {
		cfg.APIBase = apiBase
	}
	if docqaBase != "" {
		cfg.DocqaBase = docqaBase
		if analyticsBase == "" && cfg.AnalyticsBase == "" {
			cfg.AnalyticsBase = docqaBase
		}
	}
	if analyticsBase != "" {
		cfg.AnalyticsBase = analyticsBase
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// appContext bundles the configured clients most commands need
type appContext struct {
	cfg       *internal.Config
	tokens    *internal.TokenStore
	identity  *internal.Identity
	api       *internal.Client
	docqa     *internal.DocqaClient
	analytics *internal.AnalyticsClient
}

func newAppContext() (*appContext, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	tokens := internal.NewTokenStore(cfg.TokenPath())
	return &appContext{
		cfg:       cfg,
		tokens:    tokens,
		identity:  internal.NewIdentity(tokens),
		api:       internal.NewClient(cfg.APIBase, tokens),
		docqa:     internal.NewDocqaClient(cfg.DocqaBase),
		analytics: internal.NewAnalyticsClient(cfg.AnalyticsBase),
	}, nil
}

// requireLogin fails fast when no credential is stored
func (a *appContext) requireLogin() error {
	if !a.identity.IsLoggedIn() {
		return fmt.Errorf("not logged in (run `chatctl login <email>` first)")
	}
	return nil
}

// requireAdmin fails fast when the credential does not claim ADMIN
func (a *appContext) requireAdmin() error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if !a.identity.IsAdmin() {
		return fmt.Errorf("this command requires an admin account")
	}
	return nil
}
