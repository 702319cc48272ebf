// Package mcp provides a Model Context Protocol server for noter.
// It exposes template resolution and note generation as MCP tools.
package mcp

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gorewood/noter/internal/config"
	"github.com/gorewood/noter/internal/engine"
	"github.com/gorewood/noter/internal/source"
)

// Workspace is what the tools operate on.
type Workspace struct {
	Engine   *engine.Engine
	Config   *config.Config
	Sources  []source.Descriptor
	NotesDir string
	Now      func() time.Time
}

func (w *Workspace) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// NewServer creates an MCP server with all noter tools registered.
func NewServer(version string, ws *Workspace) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "noter",
		Version: version,
	}, nil)
	registerTools(server, ws)
	return server
}

func boolPtr(b bool) *bool {
	return &b
}

// readOnlyAnnotations marks tools that may consult remote release listings
// but never write notes.
func readOnlyAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(true),
	}
}

func writeAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		DestructiveHint: boolPtr(false),
		OpenWorldHint:   boolPtr(true),
	}
}

func registerTools(server *mcp.Server, ws *Workspace) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_template",
		Description: "Resolve which template source, version and variant a course and note type would use, without generating a note.",
		Annotations: readOnlyAnnotations(),
	}, handleResolve(ws))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_note",
		Description: "Generate a Typst note for a course. Returns the text and suggested file name; with write=true the note is saved under the notes directory.",
		Annotations: writeAnnotations(),
	}, handleGenerate(ws))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "template_status",
		Description: "List configured template sources with accessibility and installed versions. With check_remote, look up the latest published version of remote sources.",
		Annotations: readOnlyAnnotations(),
	}, handleStatus(ws))
}
