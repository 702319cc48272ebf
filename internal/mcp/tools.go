package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gorewood/noter/internal/engine"
	"github.com/gorewood/noter/internal/manifest"
	"github.com/gorewood/noter/internal/notefile"
)

// --- Shared types ---

// ReportInfo says where a note's template came from.
type ReportInfo struct {
	Source     string   `json:"source"            jsonschema:"template source name"`
	Kind       string   `json:"kind"              jsonschema:"source kind: builtin, local or remote"`
	Version    string   `json:"version"           jsonschema:"resolved package version"`
	Signal     string   `json:"signal"            jsonschema:"what decided the version: pinned, cache, remote, declared or typst.toml"`
	Variant    string   `json:"variant"           jsonschema:"selected variant id"`
	Package    string   `json:"package"           jsonschema:"package name from the manifest"`
	ImportPath string   `json:"import_path"       jsonschema:"Typst import path"`
	Skipped    []string `json:"skipped,omitempty" jsonschema:"sources abandoned after a failed download"`
}

func toReportInfo(r engine.Report) ReportInfo {
	return ReportInfo{
		Source:     r.Source,
		Kind:       string(r.Kind),
		Version:    r.Version,
		Signal:     string(r.Signal),
		Variant:    r.Variant,
		Package:    r.Package,
		ImportPath: r.ImportPath,
		Skipped:    r.Skipped,
	}
}

// VariantInfo summarizes one variant of the resolved package.
type VariantInfo struct {
	ID       string   `json:"id"                 jsonschema:"variant id"`
	NoteType string   `json:"note_type"          jsonschema:"note type the variant produces"`
	Default  bool     `json:"default,omitempty"  jsonschema:"default variant for its note type"`
	Sections []string `json:"sections,omitempty" jsonschema:"section titles in order"`
}

// --- resolve_template ---

// ResolveInput is the input for the resolve_template tool.
type ResolveInput struct {
	CourseCode string `json:"course_code"       jsonschema:"course code, e.g. 02101"`
	NoteType   string `json:"note_type"         jsonschema:"lecture, assignment, lab or other"`
	Variant    string `json:"variant,omitempty" jsonschema:"select a variant by id instead of by course pattern"`
	Refresh    bool   `json:"refresh,omitempty" jsonschema:"ignore the package cache"`
}

// ResolveOutput is the output for the resolve_template tool.
type ResolveOutput struct {
	Report   ReportInfo    `json:"report"   jsonschema:"resolved source, version and variant"`
	Variants []VariantInfo `json:"variants" jsonschema:"all variants of the resolved package"`
}

func handleResolve(ws *Workspace) mcp.ToolHandlerFor[ResolveInput, ResolveOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, ResolveOutput, error) {
		req, err := baseRequest(ws, input.CourseCode, input.NoteType)
		if err != nil {
			return nil, ResolveOutput{}, err
		}
		req.Variant = input.Variant
		req.ForceRefresh = input.Refresh

		pkg, v, err := ws.Engine.Resolve(ctx, req)
		if err != nil {
			return nil, ResolveOutput{}, err
		}

		out := ResolveOutput{Report: toReportInfo(pkg.Report(v))}
		for _, pv := range pkg.Manifest.Variants {
			info := VariantInfo{ID: pv.ID, NoteType: string(pv.NoteType), Default: pv.Default}
			for _, s := range pv.Sections {
				info.Sections = append(info.Sections, s.Title)
			}
			out.Variants = append(out.Variants, info)
		}
		return nil, out, nil
	}
}

// --- generate_note ---

// GenerateInput is the input for the generate_note tool.
type GenerateInput struct {
	CourseCode string            `json:"course_code"         jsonschema:"course code, e.g. 02101"`
	NoteType   string            `json:"note_type"           jsonschema:"lecture, assignment, lab or other"`
	Title      string            `json:"title,omitempty"     jsonschema:"note title"`
	Date       string            `json:"date,omitempty"      jsonschema:"note date as YYYY-MM-DD (default today)"`
	Author     string            `json:"author,omitempty"    jsonschema:"author (default from config)"`
	Semester   string            `json:"semester,omitempty"  jsonschema:"semester label (default derived from the date and config)"`
	Variables  map[string]string `json:"variables,omitempty" jsonschema:"extra template variables, also used as section bodies"`
	Sections   []string          `json:"sections,omitempty"  jsonschema:"extra section titles to append"`
	Variant    string            `json:"variant,omitempty"   jsonschema:"select a variant by id"`
	Refresh    bool              `json:"refresh,omitempty"   jsonschema:"ignore the package cache"`
	Write      bool              `json:"write,omitempty"     jsonschema:"save the note under the notes directory"`
	Force      bool              `json:"force,omitempty"     jsonschema:"overwrite an existing note file"`
}

// GenerateOutput is the output for the generate_note tool.
type GenerateOutput struct {
	Filename string     `json:"filename"       jsonschema:"suggested file name"`
	Path     string     `json:"path,omitempty" jsonschema:"where the note was written"`
	Text     string     `json:"text"           jsonschema:"generated Typst source"`
	Report   ReportInfo `json:"report"         jsonschema:"resolved source, version and variant"`
}

func handleGenerate(ws *Workspace) mcp.ToolHandlerFor[GenerateInput, GenerateOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
		req, err := baseRequest(ws, input.CourseCode, input.NoteType)
		if err != nil {
			return nil, GenerateOutput{}, err
		}
		if input.Date != "" {
			if _, err := time.Parse(time.DateOnly, input.Date); err != nil {
				return nil, GenerateOutput{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", input.Date)
			}
		}
		req.Metadata = ws.Config.Metadata(input.CourseCode, input.Title, input.Date, ws.now())
		if input.Author != "" {
			req.Metadata.Author = input.Author
		}
		if input.Semester != "" {
			req.Metadata.Semester = input.Semester
		}
		req.Metadata.Variables = input.Variables
		req.ExtraSections = input.Sections
		req.Variant = input.Variant
		req.ForceRefresh = input.Refresh

		result, err := ws.Engine.Generate(ctx, req)
		if err != nil {
			return nil, GenerateOutput{}, err
		}

		out := GenerateOutput{
			Filename: result.Filename,
			Text:     result.Text,
			Report:   toReportInfo(result.Report),
		}
		if input.Write {
			path, err := notefile.Path(ws.NotesDir, input.CourseCode, req.NoteType, result.Filename)
			if err != nil {
				return nil, GenerateOutput{}, err
			}
			if err := notefile.Write(path, []byte(result.Text), input.Force); err != nil {
				if errors.Is(err, notefile.ErrExists) {
					return nil, GenerateOutput{}, fmt.Errorf("%w; pass force=true to overwrite", err)
				}
				return nil, GenerateOutput{}, fmt.Errorf("writing note: %w", err)
			}
			out.Path = path
		}
		return nil, out, nil
	}
}

// baseRequest validates the common inputs and fills metadata from config.
func baseRequest(ws *Workspace, courseCode, noteType string) (engine.Request, error) {
	if courseCode == "" {
		return engine.Request{}, errors.New("course_code is required")
	}
	if err := notefile.CheckCourseCode(courseCode); err != nil {
		return engine.Request{}, err
	}
	nt, err := manifest.ParseNoteType(noteType)
	if err != nil {
		return engine.Request{}, err
	}
	return engine.Request{
		Sources:  ws.Sources,
		NoteType: nt,
		Metadata: ws.Config.Metadata(courseCode, "", "", ws.now()),
	}, nil
}

// --- template_status ---

// StatusInput is the input for the template_status tool.
type StatusInput struct {
	CheckRemote bool `json:"check_remote,omitempty" jsonschema:"look up the latest published version of remote sources"`
}

// SourceInfo describes one configured source.
type SourceInfo struct {
	Name        string   `json:"name"                   jsonschema:"source name"`
	Kind        string   `json:"kind"                   jsonschema:"builtin, local or remote"`
	Location    string   `json:"location,omitempty"     jsonschema:"path or owner/repo"`
	Pinned      string   `json:"pinned,omitempty"       jsonschema:"pinned version"`
	Enabled     bool     `json:"enabled"                jsonschema:"whether discovery considers the source"`
	Accessible  bool     `json:"accessible"             jsonschema:"whether the source can currently be used"`
	Installed   []string `json:"installed,omitempty"    jsonschema:"cached versions, newest first"`
	Corrupt     []string `json:"corrupt,omitempty"      jsonschema:"cached versions that need reinstalling"`
	Latest      string   `json:"latest,omitempty"       jsonschema:"latest published version"`
	LatestError string   `json:"latest_error,omitempty" jsonschema:"why the latest version could not be listed"`
}

// StatusOutput is the output for the template_status tool.
type StatusOutput struct {
	Sources []SourceInfo `json:"sources" jsonschema:"sources in discovery order"`
}

func handleStatus(ws *Workspace) mcp.ToolHandlerFor[StatusInput, StatusOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
		statuses, err := ws.Engine.Status(ctx, ws.Sources, input.CheckRemote)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("reading template status: %w", err)
		}

		out := StatusOutput{Sources: make([]SourceInfo, 0, len(statuses))}
		for _, st := range statuses {
			info := SourceInfo{
				Name:        st.Name,
				Kind:        string(st.Kind),
				Location:    st.Location,
				Pinned:      st.Pinned,
				Enabled:     st.Enabled,
				Accessible:  st.Accessible,
				Latest:      st.Latest,
				LatestError: st.LatestError,
			}
			for _, e := range st.Installed {
				if e.Corrupt {
					info.Corrupt = append(info.Corrupt, e.Version)
				} else {
					info.Installed = append(info.Installed, e.Version)
				}
			}
			out.Sources = append(out.Sources, info)
		}
		return nil, out, nil
	}
}
