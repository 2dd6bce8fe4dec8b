package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/db"
)

var (
	importSport string
	importFile  string
	importDSN   string
)

// importCmd loads a JSON data set into the players table
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace a sport's rows in the players table with a JSON data set",
	Long: `Validates a JSON data set and replaces the sport's rows in the players
table read by the postgres data set source. Record order is kept.

Example:
  catalogctl import --sport MLB --file mlb_players.json --dsn $PLAYERS_DSN`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importSport, "sport", "", "sport of the data set (required)")
	importCmd.Flags().StringVar(&importFile, "file", "", "JSON data set to import (required)")
	importCmd.Flags().StringVar(&importDSN, "dsn", os.Getenv("PLAYERS_DSN"), "postgres connection string")
	_ = importCmd.MarkFlagRequired("sport")
	_ = importCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	sport, err := parseSportFlag(importSport, false)
	if err != nil {
		return err
	}
	if importDSN == "" {
		return fmt.Errorf("--dsn or PLAYERS_DSN is required")
	}

	raw, err := dataset.NewFile(sport, importFile).Load(cmd.Context())
	if err != nil {
		return err
	}
	records, err := dataset.Validate(sport, raw)
	if err != nil {
		return err
	}

	players, err := db.NewPlayersPostgres(importDSN)
	if err != nil {
		return err
	}
	defer players.Close()

	if err := players.EnsureSchema(cmd.Context()); err != nil {
		return err
	}
	if err := players.ReplaceSport(cmd.Context(), sport, records); err != nil {
		return err
	}

	log.Info("imported data set", zap.String("sport", string(sport)), zap.Int("records", len(records)))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s players\n", len(records), sport)
	return nil
}
