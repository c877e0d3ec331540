package mcp

import (
	"context"
	"encoding/json"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/flourisha/brain/internal/domain/energy"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.energySummaryTool(),
		s.recordEnergyTool(),
		s.objectiveProgressTool(),
		s.atRiskTool(),
		s.overviewTool(),
		s.reviewQueueTool(),
	)
}

func (s *Server) energySummaryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("energy_summary",
		mcplib.WithDescription("Average energy and focus counts for a user over a time window"),
		mcplib.WithString("user_id", mcplib.Description("User to summarize; defaults to the configured subject")),
		mcplib.WithString("start", mcplib.Description("Window start, RFC 3339; defaults to 7 days ago")),
		mcplib.WithString("end", mcplib.Description("Window end, RFC 3339; defaults to now")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleEnergySummary}
}

func (s *Server) recordEnergyTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("record_energy",
		mcplib.WithDescription("Record an energy and focus reading for the configured subject"),
		mcplib.WithNumber("energy_level", mcplib.Required(), mcplib.Description("Energy from 1 to 10")),
		mcplib.WithString("focus_quality", mcplib.Required(),
			mcplib.Enum(string(energy.FocusDeep), string(energy.FocusShallow), string(energy.FocusDistracted))),
		mcplib.WithString("notes", mcplib.Description("Free-form notes")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRecordEnergy}
}

func (s *Server) objectiveProgressTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("objective_progress",
		mcplib.WithDescription("Progress of each objective in a quarter"),
		mcplib.WithString("quarter", mcplib.Required(), mcplib.Description("Quarter label, e.g. Q1_2026")),
		mcplib.WithString("objective_id", mcplib.Description("Restrict to one objective")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleObjectiveProgress}
}

func (s *Server) atRiskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("at_risk_key_results",
		mcplib.WithDescription("Key results due soon with progress below 70%"),
		mcplib.WithString("quarter", mcplib.Description("Quarter label; all quarters when empty")),
		mcplib.WithNumber("days", mcplib.Description("Deadline window in days; omitted uses the configured default")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAtRisk}
}

func (s *Server) overviewTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("okr_overview",
		mcplib.WithDescription("The subject's key results grouped into personal and workspace contexts"),
		mcplib.WithString("quarter", mcplib.Description("Quarter label; all quarters when empty")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleOverview}
}

func (s *Server) reviewQueueTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("review_queue",
		mcplib.WithDescription("Documents awaiting human review, most urgent first"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleReviewQueue}
}

func (s *Server) handleEnergySummary(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Energy == nil {
		return mcplib.NewToolResultError("energy service not configured"), nil
	}
	end, err := timeArg(req, "end", s.deps.Now())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid end", err), nil
	}
	start, err := timeArg(req, "start", end.AddDate(0, 0, -7))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid start", err), nil
	}
	userID := req.GetString("user_id", s.cfg.Claims.Subject)

	summary, err := s.deps.Energy.AverageForPeriod(ctx, s.cfg.Claims, userID, start, end)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to summarize energy", err), nil
	}
	return toolResultJSON(summary)
}

func (s *Server) handleRecordEnergy(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Energy == nil {
		return mcplib.NewToolResultError("energy service not configured"), nil
	}
	level := req.GetInt("energy_level", 0)
	if level == 0 {
		return mcplib.NewToolResultError("energy_level is required"), nil
	}
	r, err := s.deps.Energy.Record(ctx, s.cfg.Claims, energy.RecordRequest{
		EnergyLevel:  level,
		FocusQuality: energy.FocusQuality(req.GetString("focus_quality", "")),
		Notes:        req.GetString("notes", ""),
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to record energy", err), nil
	}
	return toolResultJSON(r)
}

func (s *Server) handleObjectiveProgress(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.OKRs == nil {
		return mcplib.NewToolResultError("okr service not configured"), nil
	}
	quarter := req.GetString("quarter", "")
	if quarter == "" {
		return mcplib.NewToolResultError("quarter is required"), nil
	}
	progress, err := s.deps.OKRs.ObjectiveProgress(ctx, s.cfg.Claims, quarter, req.GetString("objective_id", ""))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to compute objective progress", err), nil
	}
	return toolResultJSON(progress)
}

func (s *Server) handleAtRisk(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.OKRs == nil {
		return mcplib.NewToolResultError("okr service not configured"), nil
	}
	var days *int
	if _, ok := req.GetArguments()["days"]; ok {
		n := req.GetInt("days", 0)
		days = &n
	}
	rows, err := s.deps.OKRs.AtRisk(ctx, s.cfg.Claims, req.GetString("quarter", ""), days)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to find at-risk key results", err), nil
	}
	return toolResultJSON(rows)
}

func (s *Server) handleOverview(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.OKRs == nil {
		return mcplib.NewToolResultError("okr service not configured"), nil
	}
	overview, err := s.deps.OKRs.Overview(ctx, s.cfg.Claims, req.GetString("quarter", ""))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to build overview", err), nil
	}
	return toolResultJSON(overview)
}

func (s *Server) handleReviewQueue(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Review == nil {
		return mcplib.NewToolResultError("review queue not configured"), nil
	}
	q, err := s.deps.Review.ReviewQueue(ctx, s.cfg.Claims)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to build review queue", err), nil
	}
	return toolResultJSON(q)
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func timeArg(req mcplib.CallToolRequest, name string, def time.Time) (time.Time, error) { //nolint:gocritic // hugeParam: mcp-go request type
	raw := req.GetString(name, "")
	if raw == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, raw)
}
