package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

var (
	searchSport string
	searchLimit int
	getSport    string
	listSport   string
)

// sportsCmd lists served sports
var sportsCmd = &cobra.Command{
	Use:   "sports",
	Short: "List served sports and their load state",
	Args:  cobra.NoArgs,
	RunE:  runSports,
}

// searchCmd searches one sport locally
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a sport's players by name, team or position",
	Long: `Case-insensitive substring search over name, team and position,
in data set order.

Example:
  catalogctl search lakers --sport NBA`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// getCmd looks up one player
var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Look up a player by bare id or composite key",
	Long: `Resolves a bare id ("jamesle01") or a composite key ("NBA_jamesle01").
Without --sport every sport is loaded and tried in declared order.`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// listCmd prints every record of a sport
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every player of a sport",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	searchCmd.Flags().StringVar(&searchSport, "sport", "NBA", "sport to search")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (0 = all)")
	getCmd.Flags().StringVar(&getSport, "sport", "", "sport hint")
	listCmd.Flags().StringVar(&listSport, "sport", "NBA", "sport to list")

	rootCmd.AddCommand(sportsCmd, searchCmd, getCmd, listCmd)
}

func runSports(cmd *cobra.Command, args []string) error {
	c, err := openCatalog(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.InitializeAll(cmd.Context()); err != nil {
		// Statuses still report which sport failed
		log.Debug("loading sports", zap.Error(err))
	}

	statuses := c.Statuses()
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), statuses)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SPORT\tNAME\tSTATE\tRECORDS\tLEGACY")
	for _, s := range statuses {
		legacy := ""
		if s.Legacy {
			legacy = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Sport, s.DisplayName, s.State, s.Records, legacy)
	}
	return tw.Flush()
}

func runSearch(cmd *cobra.Command, args []string) error {
	sport, err := parseSportFlag(searchSport, false)
	if err != nil {
		return err
	}

	c, err := openCatalog(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := ensureLoaded(cmd.Context(), c, sport); err != nil {
		return err
	}

	results := c.Search(args[0], sport)
	if searchLimit > 0 && len(results) > searchLimit {
		results = results[:searchLimit]
	}
	return printPlayers(cmd.OutOrStdout(), results)
}

func runGet(cmd *cobra.Command, args []string) error {
	sport, err := parseSportFlag(getSport, true)
	if err != nil {
		return err
	}

	c, err := openCatalog(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if sport != "" {
		err = ensureLoaded(cmd.Context(), c, sport)
	} else {
		err = c.InitializeAll(cmd.Context())
	}
	if err != nil {
		return err
	}

	player, ok := c.GetByID(args[0], sport)
	if !ok {
		return fmt.Errorf("player %q not found", args[0])
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), player)
	}
	return printPlayers(cmd.OutOrStdout(), []models.PlayerRecord{player})
}

func runList(cmd *cobra.Command, args []string) error {
	sport, err := parseSportFlag(listSport, false)
	if err != nil {
		return err
	}

	c, err := openCatalog(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := ensureLoaded(cmd.Context(), c, sport); err != nil {
		return err
	}
	return printPlayers(cmd.OutOrStdout(), c.GetAll(sport))
}

// printPlayers writes records as a table, or JSON with --json
func printPlayers(w io.Writer, players []models.PlayerRecord) error {
	if jsonOutput {
		return printJSON(w, players)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tTEAM\tPOS\tNO")
	for _, p := range players {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Key(), p.Name, p.Team, p.Position, p.Number)
	}
	return tw.Flush()
}
