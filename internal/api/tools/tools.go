// Package tools exposes the team queries as Model Context Protocol tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fortuna/iplstats/internal/service"
)

type ListMatchesArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Number of matches to return (default 10)"`
}

type TeamArgs struct {
	Team string `json:"team,omitempty" jsonschema:"Franchise code (CSK, DC, ...) or full team name (required)"`
}

type TeamPairArgs struct {
	Team1 string `json:"team1,omitempty" jsonschema:"First team: code or full name (required)"`
	Team2 string `json:"team2,omitempty" jsonschema:"Second team: code or full name (required)"`
}

type NoArgs struct{}

// ToolInfo is a registered tool's name and description
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewServer builds an MCP server with every query tool registered
func NewServer(stats *service.StatsService, version string) (*mcp.Server, []ToolInfo) {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "iplstats-mcp",
			Version: version,
		},
		nil,
	)
	return server, Register(server, stats)
}

// Register adds the query tools to server
func Register(server *mcp.Server, stats *service.StatsService) []ToolInfo {
	registry := make([]ToolInfo, 0, 7)

	addTool(server, &registry, &mcp.Tool{
		Name:        "list_teams",
		Description: "Every team name spelling present in the dataset",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args NoArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(stats.Teams(ctx))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "list_matches",
		Description: "First matches in dataset order with both teams and the winner (null for no result)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListMatchesArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(stats.Matches(ctx, args.Limit))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "team_aliases",
		Description: "Franchise codes and the team names each code covers",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args NoArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(stats.Aliases(), nil)
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "team_vs_team",
		Description: "Head-to-head record between two teams, renamed franchises merged",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TeamPairArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(stats.HeadToHead(ctx, args.Team1, args.Team2))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "team_record",
		Description: "Overall won/lost/no-result record of a team with a breakdown per opponent",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TeamArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(stats.TeamRecord(ctx, args.Team))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "batting_record",
		Description: "Match outcomes of a team reported as batting wins and losses",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TeamArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(stats.BattingRecord(ctx, args.Team))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "bowling_record",
		Description: "Match outcomes of a team reported as successful and failed defenses",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TeamArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(stats.BowlingRecord(ctx, args.Team))
	})

	return registry
}

func addTool[T any](server *mcp.Server, registry *[]ToolInfo, tool *mcp.Tool, handler func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error)) {
	*registry = append(*registry, ToolInfo{Name: tool.Name, Description: tool.Description})
	mcp.AddTool(server, tool, handler)
}

func toolJSON(result any, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return toolError(err), nil, nil
	}
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(err), nil, nil
	}
	return toolJSONBytes(b), nil, nil
}

func toolJSONBytes(res []byte) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(res)},
		},
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
