package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aretw0/framecast"
	"github.com/aretw0/framecast/internal/logging"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/export"
	"github.com/aretw0/framecast/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StatsURI is the resource exposing live action totals.
const StatsURI = "framecast://stats"

// StatsResponse aligns with the HTTP /stats payload plus a total.
type StatsResponse struct {
	Download int64 `json:"download" jsonschema_description:"Number of recorded downloads"`
	Share    int64 `json:"share" jsonschema_description:"Number of recorded shares"`
	Total    int64 `json:"total" jsonschema_description:"Sum of all actions"`
}

// CompositeResponse describes a composite written to disk.
type CompositeResponse struct {
	Frame      string `json:"frame" jsonschema_description:"Frame used"`
	Size       int    `json:"size" jsonschema_description:"Side of the square image in pixels"`
	Bytes      int    `json:"bytes" jsonschema_description:"Encoded PNG size"`
	OutputPath string `json:"output_path,omitempty" jsonschema_description:"Where the PNG was written"`
}

// Studio defines what the MCP server needs from the framecast Studio.
type Studio interface {
	ports.Studio
	Record(ctx context.Context, kind domain.ActionKind) error
}

// Server wraps the Studio and exposes it as an MCP Server.
type Server struct {
	studio    Studio
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(studio Studio, opts ...Option) *Server {
	s := &Server{
		studio:    studio,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("framecast-mcp", strings.TrimSpace(framecast.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: composite_photo
	s.mcpServer.AddTool(mcp.NewTool("composite_photo",
		mcp.WithDescription("Frame a photo with a campaign frame. Returns the PNG inline, or writes it to output_path."),
		mcp.WithString("photo_path", mcp.Description("Path of the photo to frame")),
		mcp.WithString("photo_base64", mcp.Description("Base64 photo bytes, used when photo_path is empty")),
		mcp.WithString("frame", mcp.Description("Frame name; the active frame when omitted")),
		mcp.WithString("output_path", mcp.Description("Write the PNG here instead of returning it")),
	), s.handleComposite)

	// TOOL: action_stats
	s.mcpServer.AddTool(mcp.NewTool("action_stats",
		mcp.WithDescription("Current download and share totals."),
		mcp.WithOutputSchema[StatsResponse](),
	), mcp.NewStructuredToolHandler(s.handleStats))

	// TOOL: record_action
	s.mcpServer.AddTool(mcp.NewTool("record_action",
		mcp.WithDescription("Record one download or share. Totals update when the store confirms it."),
		mcp.WithString("kind", mcp.Required(), mcp.Enum("download", "share"), mcp.Description("Action kind")),
	), s.handleRecord)

	// TOOL: list_frames
	s.mcpServer.AddTool(mcp.NewTool("list_frames",
		mcp.WithDescription("List the registered frames and which one is active."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		frames, err := s.studio.Frames(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list frames failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(frames)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleComposite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	photo, err := readPhoto(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.studio.Compose(ctx, photo, request.GetString("frame", ""))
	if err != nil {
		s.logger.Warn("MCP composite failed", "error", err)
		msg := export.UserMessage(err)
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", msg, err)), nil
	}

	out := request.GetString("output_path", "")
	if out == "" {
		caption := fmt.Sprintf("Framed photo (%s, %dx%d)", res.Frame, res.Size, res.Size)
		return mcp.NewToolResultImage(caption, base64.StdEncoding.EncodeToString(res.PNG), res.ContentType()), nil
	}

	if err := os.WriteFile(out, res.PNG, 0644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("write failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(CompositeResponse{
		Frame:      res.Frame,
		Size:       res.Size,
		Bytes:      len(res.PNG),
		OutputPath: out,
	})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func readPhoto(request mcp.CallToolRequest) ([]byte, error) {
	if path := request.GetString("photo_path", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read photo: %w", err)
		}
		return data, nil
	}
	if b64 := request.GetString("photo_base64", ""); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("photo_base64: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("one of photo_path or photo_base64 is required")
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatsResponse, error) {
	return statsOf(s.studio.Counts()), nil
}

func statsOf(counts domain.ActionCounts) StatsResponse {
	return StatsResponse{
		Download: counts[domain.ActionDownload],
		Share:    counts[domain.ActionShare],
		Total:    counts.Total(),
	}
}

func (s *Server) handleRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := domain.ParseActionKind(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.studio.Record(ctx, kind); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("recorded %s", kind)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: framecast://stats
	s.mcpServer.AddResource(mcp.NewResource(StatsURI, "Live Action Totals",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, _ := json.Marshal(statsOf(s.studio.Counts()))
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StatsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
