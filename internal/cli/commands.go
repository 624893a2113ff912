package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/spf13/cobra"

	"github.com/finsage/finsage/config"
	"github.com/finsage/finsage/internal/agent"
	"github.com/finsage/finsage/internal/api"
	"github.com/finsage/finsage/internal/dataflows"
	"github.com/finsage/finsage/internal/history"
	"github.com/finsage/finsage/internal/mcp"
	"github.com/finsage/finsage/internal/session"
	"github.com/finsage/finsage/internal/websearch"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "finsage",
		Short: "FinSage - conversational financial assistant backend",
		Long: `FinSage is a conversational financial assistant backend. It connects a
user's financial data service with live market data, mutual fund NAVs and
web search, and answers questions through LLM-driven workflows.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}

	rootCmd.AddCommand(newServeCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(cfg))

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")

	return rootCmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
				cfg.ListenAddr = addr
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().String("listen", "", "Listen address (overrides config)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("FinSage v1.0.0")
		},
	}
}

func newConfigCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *cfg
			if shown.LLMAPIKey != "" {
				shown.LLMAPIKey = "***"
			}
			if shown.GoogleSearchAPIKey != "" {
				shown.GoogleSearchAPIKey = "***"
			}
			if shown.SerpAPIKey != "" {
				shown.SerpAPIKey = "***"
			}
			out, err := json.MarshalIndent(shown, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func runServe(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := config.NewManager(
		config.WithConfigDir(cfg.DataDir),
		config.WithInitialConfig(cfg),
	)
	if err != nil {
		return fmt.Errorf("init config manager: %w", err)
	}
	managed := manager.Get()
	cfg = &managed

	maxTokens := cfg.MaxTokens
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   cfg.LLMBaseURL,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return fmt.Errorf("init chat model: %w", err)
	}

	records, err := history.Open(filepath.Join(cfg.DataDir, "chat_history.db"))
	if err != nil {
		return fmt.Errorf("open chat history: %w", err)
	}
	defer records.Close()

	sessions := session.NewStore(session.StoreConfig{
		AuthTTL:  time.Duration(cfg.AuthCacheTTLSec) * time.Second,
		MaxTurns: cfg.MaxContextTurns,
		NewRemote: func(sessionID string) session.RemoteClient {
			return mcp.NewClient(sessionID, mcp.ClientConfig{
				BaseURL:       cfg.MCPBaseURL,
				ClientName:    cfg.ClientName,
				ClientVersion: cfg.ClientVersion,
				InitTimeout:   time.Duration(cfg.MCPInitTimeoutSec) * time.Second,
				CallTimeout:   time.Duration(cfg.MCPCallTimeoutSec) * time.Second,
			})
		},
	})

	market := dataflows.NewMarketClient(cfg.DataCacheDir, cfg.CacheEnabled)
	funds := dataflows.NewFundClient(cfg.DataCacheDir, cfg.CacheEnabled)
	search := websearch.NewChain(websearch.Config{
		GoogleAPIKey: cfg.GoogleSearchAPIKey,
		GoogleCSEID:  cfg.GoogleCSEID,
		SerpAPIKey:   cfg.SerpAPIKey,
	})

	orchestrator := agent.New(chatModel, market, funds, search, records, agent.Config{
		MaxWorkerRounds: cfg.MaxWorkerRounds,
		MaxParallel:     cfg.MaxParallelTools,
		BatchTimeout:    time.Duration(cfg.BatchTimeoutSec) * time.Second,
	})

	// Live-apply the orchestrator tunables when the config file changes.
	if err := manager.Watch(ctx, func(updated config.Config) {
		log.Printf("config reloaded from %s", manager.Path())
		orchestrator.SetLimits(
			updated.MaxWorkerRounds,
			updated.MaxParallelTools,
			time.Duration(updated.BatchTimeoutSec)*time.Second,
		)
	}); err != nil {
		log.Printf("config watch unavailable: %v", err)
	}

	handlers := api.NewHandlers(sessions, orchestrator, records)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handlers.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("finsage listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
