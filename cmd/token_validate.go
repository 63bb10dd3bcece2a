package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tokenValidateValue string

// tokenValidateCmd represents the token validate command
var tokenValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a token against the server without rotating it",
	Example: `  antiforge token validate --token eyJhbGci...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Validating token...")
		valid, err := cli.Validate(cmd.Context(), tokenValidateValue)
		if err != nil {
			return fmt.Errorf("validating token: %w", err)
		}

		if valid {
			fmt.Printf("%s token is %s\n", greenCheck, bold("valid"))
			return nil
		}
		fmt.Printf("%s token is %s\n", redCross, bold("not valid"))
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenValidateCmd)

	tokenValidateCmd.Flags().StringVar(&tokenValidateValue, "token", "", "Token value to check")
	_ = tokenValidateCmd.MarkFlagRequired("token")
}
