// Package main provides directory seeding and operator token minting for Realm Steward.
//
// Import Path: kc-steward.io/steward/cmd/seed
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "steward-seed",
	Short:         "Seed the Realm Steward cluster directory",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}
