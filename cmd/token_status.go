package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// tokenStatusCmd represents the token status command
var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local token state",
	Long: `Shows the state the client currently holds: whether a persisted session
exists, whether a valid token is cached and how long it remains usable. This
command does not talk to the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := getController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		sessionID := ctrl.SessionID()
		if sessionID == "" {
			sessionID = faint("(none)")
		} else {
			sessionID = bold(truncate(sessionID, 48))
		}

		validMark := redCross
		remaining := faint("-")
		if ctrl.Valid() {
			validMark = greenCheck
			remaining = ctrl.Remaining().Round(time.Second).String()
		}

		limited := faint("no")
		if ctrl.RateLimited() {
			limited = redCross + " yes"
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Session", "Valid", "Remaining", "Rate Limited"})
		t.AppendRow(table.Row{sessionID, validMark, remaining, limited})

		s := table.StyleRounded
		s.Format.Header = text.FormatDefault
		t.SetStyle(s)
		t.Render()
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenStatusCmd)
}
