package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const (
	overviewURI    = "flourisha://okrs/overview"
	reviewQueueURI = "flourisha://extraction/review-queue"
	jsonMIME       = "application/json"
)

var errNotConfigured = errors.New("service not configured")

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(overviewURI, "OKR overview",
			mcplib.WithResourceDescription("The subject's key results per context, all quarters"),
			mcplib.WithMIMEType(jsonMIME),
		),
		s.readOverview,
	)
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(overviewURI+"/{quarter}", "OKR overview for a quarter",
			mcplib.WithTemplateDescription("The subject's key results per context for one quarter, e.g. Q1_2026"),
			mcplib.WithTemplateMIMEType(jsonMIME),
		),
		s.readOverview,
	)
	s.mcpServer.AddResource(
		mcplib.NewResource(reviewQueueURI, "Extraction review queue",
			mcplib.WithResourceDescription("Documents awaiting human review, highest priority first"),
			mcplib.WithMIMEType(jsonMIME),
		),
		s.readReviewQueue,
	)
}

// readOverview serves both the all-quarters resource and the per-quarter template;
// the quarter is whatever follows the overview URI.
func (s *Server) readOverview(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.OKRs == nil {
		return nil, errNotConfigured
	}
	quarter := strings.TrimPrefix(strings.TrimPrefix(req.Params.URI, overviewURI), "/")
	overview, err := s.deps.OKRs.Overview(ctx, s.cfg.Claims, quarter)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, overview)
}

func (s *Server) readReviewQueue(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Review == nil {
		return nil, errNotConfigured
	}
	queue, err := s.deps.Review.ReviewQueue(ctx, s.cfg.Claims)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, queue)
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{URI: uri, MIMEType: jsonMIME, Text: string(data)},
	}, nil
}
