package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Test the connection to the analytics API",
	Long: `Authenticate with the configured credentials and resolve the analytics
company. Nothing is read from or written to any report suite.`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	company, err := a.syncer.Connect(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Connected to %s\n", company.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "   Global company id: %s\n", company.GlobalCompanyID)
	return nil
}
