package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var leaderAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "checkctl",
		Short: "Operator CLI for the checker's control API",
		Long:  "checkctl drives a running Leader's start/stop/query/act/prop control commands (spec §6.1)",
	}

	rootCmd.PersistentFlags().StringVar(&leaderAddr, "leader", "localhost:9193", "Leader's control API address")
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(actCmd())
	rootCmd.AddCommand(propCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
