package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/catalogclient"
)

var (
	serverURL   string
	remoteSport string
)

// remoteCmd groups commands that talk to a running player-catalog service
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Query a running player-catalog service",
}

// remoteSearchCmd calls the remote search endpoint
var remoteSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search through the service's search endpoint (max 20 results)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteSearch,
}

func init() {
	defaultServer := os.Getenv("CATALOG_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	remoteCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "player-catalog base url")
	remoteSearchCmd.Flags().StringVar(&remoteSport, "sport", "", "sport to search (server default: NBA)")

	remoteCmd.AddCommand(remoteSearchCmd)
	rootCmd.AddCommand(remoteCmd)
}

func runRemoteSearch(cmd *cobra.Command, args []string) error {
	sport, err := parseSportFlag(remoteSport, true)
	if err != nil {
		return err
	}

	client := catalogclient.New(serverURL, nil)
	results, err := client.SearchPlayers(cmd.Context(), args[0], sport)
	if err != nil {
		return err
	}
	return printPlayers(cmd.OutOrStdout(), results)
}
