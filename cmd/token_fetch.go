package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	tokenFetchShow    bool
	tokenFetchRefresh bool
)

// tokenFetchCmd represents the token fetch command
var tokenFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a CSRF token from the server",
	Long: `Fetches a CSRF token from the configured server. With --refresh and a
persisted session, the existing session is kept and only the token is rotated;
otherwise a new session is started.

The token value is masked by default; pass --show to print it in full.`,
	Example: `  antiforge token fetch --server http://localhost:8422
  antiforge token fetch --refresh --show`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := getController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		var token string
		if tokenFetchRefresh {
			log.Debug().Msg("Refreshing token...")
			token, err = ctrl.Refresh(cmd.Context())
		} else {
			log.Debug().Msg("Fetching token...")
			token, err = ctrl.Fetch(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("acquiring token: %w", err)
		}

		display := maskSecret(token)
		if tokenFetchShow {
			display = token
		}

		fmt.Printf("%s %s\n", greenCheck, bold("Token acquired"))
		fmt.Printf("  %s:   %s\n", faint("Token"), display)
		fmt.Printf("  %s: %s\n", faint("Session"), ctrl.SessionID())
		fmt.Printf("  %s: %s\n", faint("Expires"), ctrl.Remaining().Round(time.Second))
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenFetchCmd)

	tokenFetchCmd.Flags().BoolVar(&tokenFetchShow, "show", false, "Print the full token value")
	tokenFetchCmd.Flags().BoolVar(&tokenFetchRefresh, "refresh", false, "Rotate the token within the existing session")
}
