package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaltools/config"
)

// NewSecretCmd creates the "secret" command group.
func NewSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage encrypted config values",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a value for use in petaltools.yaml",
		Long:  "Prints an enc:v1: value that Load decrypts with the key from " + config.SecretKeyEnv + " or the derived per-user key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encrypted, err := config.EncryptSecret(args[0])
			if err != nil {
				return exitError(exitConfig, "encrypting value: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), encrypted)
			return nil
		},
	})
	return cmd
}
