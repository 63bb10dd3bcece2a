package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// tokenClearCmd represents the token clear command
var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the local session and invalidate it on the server",
	Long: `Resets the local token state and removes the persisted session, then asks
the server to invalidate the session. The local state is cleared even when the
server cannot be reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := getController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		ctrl.Clear(cmd.Context())

		fmt.Printf("%s %s\n", greenCheck, bold("Session cleared"))
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenClearCmd)
}
