package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/hazlamahedich/antiforge/internal/lifecycle"
	"github.com/hazlamahedich/antiforge/internal/session"
	"github.com/hazlamahedich/antiforge/pkg/client"
)

var (
	bold       = color.New(color.Bold).SprintFunc()
	faint      = color.New(color.Faint).SprintFunc()
	greenCheck = color.New(color.FgGreen).Sprint("✓")
	redCross   = color.New(color.FgRed).Sprint("✗")
)

func getClient() (*client.Client, error) {
	// we need the user to provide some server address first
	server := viper.GetString(ServerAddrKey)
	if server == "" {
		return nil, fmt.Errorf("server address not configured, provide via --server or env")
	}
	return client.New(server), nil
}

// getController wires the HTTP client into a lifecycle controller whose
// session survives restarts through the per-host session file. Only the
// session id and last-fetch time are written there, never the token.
func getController() (*lifecycle.Controller, error) {
	cli, err := getClient()
	if err != nil {
		return nil, err
	}

	server := viper.GetString(ServerAddrKey)
	path, err := session.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolving session file path: %w", err)
	}

	var opts []lifecycle.Option
	meta, err := session.NewFileStore(path, server)
	if err != nil {
		// a broken session file should not make the CLI unusable
		log.Warn().Err(err).Msg("session file unavailable, continuing without persistence")
	} else {
		opts = append(opts, lifecycle.WithMetadataStore(meta))
	}
	opts = append(opts, lifecycle.WithLogger(log.Logger))

	return lifecycle.New(cli, opts...), nil
}

// maskSecret keeps just enough of a token to recognize it in output.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "…" + s[len(s)-4:]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
