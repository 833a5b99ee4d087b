// Package main provides the bucketeer CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/richinex/bucketeer/agent"
	"github.com/richinex/bucketeer/bucket"
	"github.com/richinex/bucketeer/cli"
	"github.com/richinex/bucketeer/config"
	"github.com/richinex/bucketeer/llm"
	"github.com/richinex/bucketeer/tools"
	"github.com/richinex/bucketeer/web"
)

var (
	// Global flags
	provider string
	maxIter  int
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "bucketeer",
		Short: "Natural language assistant for S3 object storage",
		Long: `Bucketeer lets you manage S3 buckets and objects in plain language.

An LLM translates your requests into storage operations: listing buckets
and objects, uploading and downloading files, deleting objects, reading
metadata, and searching by name or metadata.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "",
		fmt.Sprintf("LLM provider (%s)", strings.Join(config.SupportedProviders(), ", ")))
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 10, "Maximum reasoning iterations per request")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [request]",
		Short: "Run a single storage request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider: provider,
				MaxIter:  maxIter,
				Verbose:  verbose,
			}
			return cli.RunTask(context.Background(), args[0], opts)
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider: provider,
				MaxIter:  maxIter,
				Verbose:  verbose,
			}
			return cli.Chat(context.Background(), sessionID, dbPath, opts)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&dbPath, "db", ".bucketeer/bucketeer.db", "Database path for storage")

	return cmd
}

func serveCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web chat interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				return fmt.Errorf("--provider is required for this command")
			}

			settings, err := config.New(provider)
			if err != nil {
				return err
			}
			if listenAddr == "" {
				listenAddr = settings.Web.ListenAddr
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			server := web.NewServer(logger, agentFactory(settings), nil)
			return server.ListenAndServe(context.Background(), listenAddr)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from WEB_LISTEN_ADDR or :8080)")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available storage tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

// agentFactory binds web sessions to their own credentials. Fields left
// empty fall back to the environment settings.
func agentFactory(settings config.Settings) web.AgentFactory {
	return func(ctx context.Context, sessionCfg web.SessionConfig) (*agent.Agent, error) {
		cfg := sessionCfg.Bucket
		if cfg.AccessKeyID == "" {
			cfg.AccessKeyID = settings.S3.AccessKeyID
			cfg.SecretAccessKey = settings.S3.SecretAccessKey
			cfg.SessionToken = settings.S3.SessionToken
		}
		if cfg.Region == "" {
			cfg.Region = settings.S3.Region
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = settings.S3.Endpoint
			cfg.UsePathStyle = settings.S3.UsePathStyle
		}

		providerType, err := llm.ParseProviderType(settings.LLM.Provider)
		if err != nil {
			return nil, err
		}
		apiKey := sessionCfg.LLMAPIKey
		if apiKey == "" {
			apiKey, err = config.APIKeyFor(settings.LLM.Provider)
			if err != nil {
				return nil, err
			}
		}
		llmProvider, err := providerType.
			Model(settings.LLM.Model).
			MaxTokens(settings.LLM.MaxTokens).
			Temperature(float32(settings.LLM.Temperature)).
			APIKey(apiKey)
		if err != nil {
			return nil, err
		}

		manager, err := bucket.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}

		registry, err := tools.NewStorageRegistry(manager)
		if err != nil {
			return nil, err
		}

		agentConfig := agent.DefaultConfig()
		agentConfig.MaxIterations = settings.Agent.MaxIterations
		a := agent.NewWithRegistry(agentConfig, llmProvider, registry)
		a = a.WithToolConfig(tools.ToolConfig{TimeoutSecs: uint64(settings.Agent.ToolTimeoutSecs)})
		return a, nil
	}
}
