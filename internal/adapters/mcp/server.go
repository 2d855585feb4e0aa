// Package mcpadapter exposes the extraction pipeline as MCP tools so
// editor assistants can run it against local files over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
)

type Server struct {
	mcpServer    *server.MCPServer
	orchestrator ports.MetadataExtractor
	extractor    ports.TextExtractor
}

func NewServer(orchestrator ports.MetadataExtractor, extractor ports.TextExtractor, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"document-extraction-llm",
			version,
			server.WithToolCapabilities(false),
		),
		orchestrator: orchestrator,
		extractor:    extractor,
	}

	s.mcpServer.AddTool(mcp.NewTool("extract_metadata",
		mcp.WithDescription("Run the full metadata extraction pipeline over a local PDF, DOCX or TXT file and return the generated record as JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document on disk.")),
		mcp.WithString("type", mcp.Description("Document type hint: articulo, libro, tesis, objeto de conferencia or general. Classified automatically when omitted.")),
		mcp.WithBoolean("deepanalyze", mcp.Description("Run a second validation pass over the generated record.")),
		mcp.WithBoolean("ocr", mcp.Description("Fall back to OCR for scanned pages.")),
	), s.extractMetadata)

	s.mcpServer.AddTool(mcp.NewTool("extract_text",
		mcp.WithDescription("Extract the text of a local document without generating metadata."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document on disk.")),
		mcp.WithString("view", mcp.Description("plain (default) or tagged.")),
		mcp.WithBoolean("normalization", mcp.Description("Apply OCR-artifact normalization to the extracted text.")),
	), s.extractText)

	return s
}

// ServeStdio blocks until the client closes the stream.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) extractMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}

	record, err := s.orchestrator.Extract(ctx, domain.ExtractRequest{
		Filename:    filepath.Base(path),
		Data:        raw,
		Type:        strings.ToLower(strings.TrimSpace(req.GetString("type", ""))),
		Normalize:   true,
		OCR:         req.GetBool("ocr", false),
		DeepAnalyze: req.GetBool("deepanalyze", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata record: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) extractText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", path, err)), nil
	}
	defer file.Close()

	normalize := req.GetBool("normalization", false)

	var text string
	switch view := req.GetString("view", "plain"); view {
	case "plain":
		text, err = s.extractor.ExtractPlain(ctx, filepath.Base(path), file, normalize)
	case "tagged":
		text, err = s.extractor.ExtractTagged(ctx, filepath.Base(path), file, domain.ExtractOptions{Normalize: normalize})
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown view %q, want plain or tagged", view)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}
