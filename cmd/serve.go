package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulseloop/pulseloop/internal/config"
	"github.com/pulseloop/pulseloop/internal/conversation"
	"github.com/pulseloop/pulseloop/internal/db"
	"github.com/pulseloop/pulseloop/internal/llm"
	"github.com/pulseloop/pulseloop/internal/platform"
	"github.com/pulseloop/pulseloop/internal/server"
	"github.com/pulseloop/pulseloop/internal/session"
)

var serveAsync bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook ingress and conversation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		database, err := db.Open(filepath.Join(cfg.DataDir, "pulseloop.db"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()
		store := conversation.NewSQLiteStore(database)

		gateway, err := buildGateway(cfg)
		if err != nil {
			return fmt.Errorf("building llm gateway: %w", err)
		}

		registry := platform.NewRegistry()
		if cfg.Slack.Enabled {
			registry.Register(platform.NewSlackAdapter(cfg.Slack.BotToken, cfg.Slack.SigningSecret))
		}
		if cfg.GoogleChat.Enabled {
			registry.Register(platform.NewGoogleChatAdapter(cfg.GoogleChat.VerificationToken, cfg.GoogleChat.AccessToken))
		}
		if cfg.Teams.Enabled {
			registry.Register(platform.NewTeamsAdapter(cfg.Teams.SecurityToken, cfg.Teams.WebhookURL))
		}

		orchestrator := conversation.New(store, gateway, registry)

		var dispatcher platform.Dispatcher
		var async *server.AsyncDispatcher
		if serveAsync {
			async = server.NewAsyncDispatcher(orchestrator, 256, 4)
			dispatcher = async
			defer async.Close()
		} else {
			dispatcher = &server.SyncDispatcher{Orchestrator: orchestrator}
		}

		tokens := session.NewIssuer(cfg.SessionSecret)

		srv := server.New(server.Config{
			Port:     cfg.Port,
			AllowAll: cfg.AllowAllOrigins,
		}, registry, orchestrator, store, tokens, dispatcher)

		// Periodic sweep for conversations idle past their deadline.
		sweepCtx, cancelSweep := context.WithCancel(context.Background())
		defer cancelSweep()
		if cfg.ConversationTTLMinutes > 0 {
			go runExpirySweep(sweepCtx, orchestrator, time.Duration(cfg.ConversationTTLMinutes)*time.Minute)
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Printf("received %s, shutting down", sig)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

// buildGateway wires the configured provider and embedder into a gateway.
func buildGateway(cfg *config.Config) (*llm.Gateway, error) {
	gateway := llm.NewGateway(string(cfg.Provider))

	provider, err := llm.NewProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}
	if err := gateway.RegisterProvider(provider, llm.ModelSet{
		Fast:     cfg.Models.Fast,
		Standard: cfg.Models.Standard,
		Advanced: cfg.Models.Advanced,
	}); err != nil {
		return nil, err
	}

	if cfg.EmbeddingProvider != "" {
		embedder, err := llm.NewEmbedder(string(cfg.EmbeddingProvider))
		if err != nil {
			log.Printf("embedding provider unavailable: %v", err)
		} else if err := gateway.RegisterEmbedder(embedder, cfg.EmbeddingModel); err != nil {
			return nil, err
		}
	}

	return gateway, nil
}

func runExpirySweep(ctx context.Context, orc *conversation.Orchestrator, maxIdle time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := orc.ExpireStale(ctx, maxIdle)
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("expired %d stale conversation(s)", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	serveCmd.Flags().BoolVar(&serveAsync, "async", false, "process webhook events on a background queue")
	rootCmd.AddCommand(serveCmd)
}
