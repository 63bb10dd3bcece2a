package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hazlamahedich/antiforge/internal/api"
	"github.com/hazlamahedich/antiforge/internal/config"
	"github.com/hazlamahedich/antiforge/internal/store"
)

var cfgFile string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Antiforge token server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		log.Info().Str("type", cfg.Store.Type).Msg("Initializing session store...")
		sessions, err := store.Build(cfg.Store)
		if err != nil {
			return fmt.Errorf("building session store: %w", err)
		}

		signer, err := api.NewSigner([]byte(cfg.SigningKey))
		if err != nil {
			return fmt.Errorf("building token signer: %w", err)
		}

		policy, err := api.CompileIssuePolicy(cfg.IssuePolicy)
		if err != nil {
			return fmt.Errorf("compiling issue policy: %w", err)
		}

		srv := api.NewServer(sessions, signer, policy, cfg.TokenMaxAge, api.RateLimit{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		})

		server := &http.Server{
			Addr:    cfg.Addr,
			Handler: srv.Routes(),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", cfg.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Path to the server configuration file")
}
