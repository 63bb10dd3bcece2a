package cmd

import (
	"github.com/spf13/cobra"
)

// tokenCmd groups the client-side token lifecycle commands
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the client-side CSRF token",
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
