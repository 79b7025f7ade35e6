package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Generate an Argon2id hash for a dev backend account",
	Long: `Generate an Argon2id hash of a password for the password_hash field
of a seed file, so plaintext passwords need not be committed.

Example:
  yazcar hash-password "correct horse battery"
  # Output: $argon2id$v=19$m=...

Security note: The password will appear in shell history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
