// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bes-catalog CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bes-catalog/internal/catalog"
	"github.com/pdiddy/bes-catalog/internal/logging"
	"github.com/pdiddy/bes-catalog/internal/secrets"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// appConfig is loaded once per invocation in PersistentPreRunE.
var appConfig types.Config

// rootCmd is the base command for the bes-catalog CLI.
var rootCmd = &cobra.Command{
	Use:   "bes-catalog",
	Short: "Catalog of bioelectrochemical systems literature",
	Long: `bes-catalog collects papers on microbial fuel cells, electrolysis cells and
related bioelectrochemical systems, extracts experimental parameters from
their abstracts, scores their relevance and serves the catalog over REST.

A typical run is fetch, then extract, then quality. The score and validate
commands recompute stored results after the scorer or validator changes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		s.ApplyFetch(&cfg.Fetch)
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Names())
		}

		appConfig = cfg
		logger := logging.New(cfg.Logging)
		cmd.SetContext(logger.WithContext(cmd.Context()))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bes-catalog.yaml or ~/.config/bes-catalog/bes-catalog.yaml)")
	rootCmd.PersistentFlags().String("db", "", "catalog database path (overrides catalog.db_path)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("catalog.db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bes-catalog")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bes-catalog"))
		}
	}

	viper.SetEnvPrefix("BES_CATALOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so that environment variables
// reach Unmarshal even when no config file sets them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.db_path", "data/catalog.db")
	v.SetDefault("catalog.max_results", 20)

	v.SetDefault("fetch.sources", []string{types.SourceCrossRef, types.SourcePubMed, types.SourceArxiv})
	v.SetDefault("fetch.max_results", 50)
	v.SetDefault("fetch.request_delay", time.Second)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.user_agent", "bes-catalog/"+version)
	v.SetDefault("fetch.crossref_mailto", "")
	v.SetDefault("fetch.pubmed_api_key", "")

	v.SetDefault("extraction.backend", string(types.BackendRegex))
	v.SetDefault("extraction.limit", 0)
	v.SetDefault("extraction.workers", 4)
	v.SetDefault("extraction.force", false)
	v.SetDefault("extraction.llm.endpoint", "http://localhost:11434")
	v.SetDefault("extraction.llm.model", "llama3.1:8b")
	v.SetDefault("extraction.llm.max_retries", 3)
	v.SetDefault("extraction.llm.timeout", 2*time.Minute)

	v.SetDefault("scoring.limit", 0)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// loadConfig decodes the merged flags, environment, config file and
// defaults into a Config.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// openCatalog opens the configured catalog database.
func openCatalog() (*catalog.Store, error) {
	return catalog.Open(appConfig.Catalog)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
