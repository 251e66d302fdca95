package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auth-service/internal/auth"
)

// NewHashPasswordCmd prints a bcrypt digest, for seeding accounts by hand.
func NewHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt digest of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasher, err := auth.NewBcryptHasher(cost)
			if err != nil {
				return err
			}

			digest, err := hasher.Hash(args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest)
			return err
		},
	}

	cmd.Flags().IntVar(&cost, "bcrypt-cost", auth.DefaultBcryptCost, "bcrypt work factor")

	return cmd
}
