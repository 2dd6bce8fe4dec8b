package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

const mcpSearchLimit = 20

// mcpCmd serves the catalog as MCP tools over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve catalog lookups as MCP tools over stdio",
	Long: `Runs an MCP server on stdin/stdout exposing:
  search_players  - substring search within a sport
  get_player      - lookup by bare id or composite key
  list_sports     - served sports and load states
  resolve_players - resolve persisted player references`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

type SearchPlayersArgs struct {
	Query string `json:"query" jsonschema:"Name, team or position fragment (required)"`
	Sport string `json:"sport,omitempty" jsonschema:"NBA, NFL or MLB (default NBA)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default and max 20)"`
}

type GetPlayerArgs struct {
	PlayerID string `json:"player_id" jsonschema:"Bare id or composite key such as NBA_jamesle01 (required)"`
	Sport    string `json:"sport,omitempty" jsonschema:"Sport hint"`
}

type ListSportsArgs struct{}

type ResolvePlayersArgs struct {
	Refs []models.PlayerRef `json:"refs" jsonschema:"Persisted references to resolve"`
}

func runMCP(cmd *cobra.Command, args []string) error {
	c, err := openCatalog(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	server := newMCPServer(c)
	if err := server.Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// newMCPServer registers the catalog tools. Sports load on first use.
func newMCPServer(c *localCatalog) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "player-catalog",
			Version: "1.0.0",
		},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_players",
		Description: "Case-insensitive substring search over player name, team and position",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchPlayersArgs) (*mcp.CallToolResult, any, error) {
		sport := models.SportNBA
		if args.Sport != "" {
			parsed, err := parseSportFlag(args.Sport, false)
			if err != nil {
				return toolError(err), nil, nil
			}
			sport = parsed
		}
		if err := ensureLoaded(ctx, c, sport); err != nil {
			return toolError(err), nil, nil
		}

		limit := args.Limit
		if limit <= 0 || limit > mcpSearchLimit {
			limit = mcpSearchLimit
		}
		results := c.Search(args.Query, sport)
		if len(results) > limit {
			results = results[:limit]
		}
		return toolJSON(results)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_player",
		Description: "Look up one player by bare id or composite key",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetPlayerArgs) (*mcp.CallToolResult, any, error) {
		if args.PlayerID == "" {
			return toolError(fmt.Errorf("player_id is required")), nil, nil
		}
		sport, err := parseSportFlag(args.Sport, true)
		if err != nil {
			return toolError(err), nil, nil
		}

		if sport != "" {
			err = ensureLoaded(ctx, c, sport)
		} else {
			err = c.InitializeAll(ctx)
		}
		if err != nil {
			return toolError(err), nil, nil
		}

		player, ok := c.GetByID(args.PlayerID, sport)
		if !ok {
			return toolError(fmt.Errorf("player %q not found", args.PlayerID)), nil, nil
		}
		return toolJSON(player)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sports",
		Description: "Served sports in lookup order with their load states",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListSportsArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(c.Statuses())
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_players",
		Description: "Resolve persisted player references and report the dominant sport",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ResolvePlayersArgs) (*mcp.CallToolResult, any, error) {
		if err := c.InitializeAll(ctx); err != nil {
			return toolError(err), nil, nil
		}
		for i, ref := range args.Refs {
			if sport, ok := models.ParseSport(string(ref.Sport)); ok {
				args.Refs[i].Sport = sport
			}
		}
		return toolJSON(c.Resolve(args.Refs))
	})

	return server
}

func toolJSON(v interface{}) (*mcp.CallToolResult, any, error) {
	res, err := json.Marshal(v)
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(res)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
