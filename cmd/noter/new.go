package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gorewood/noter/internal/engine"
	"github.com/gorewood/noter/internal/manifest"
	"github.com/gorewood/noter/internal/notefile"
	"github.com/gorewood/noter/internal/output"
)

// newFlags holds the command-line flags for the new command.
type newFlags struct {
	noteType string
	title    string
	date     string
	author   string
	semester string
	vars     []string
	sections []string
	variant  string
	source   string
	refresh  bool
	stdout   bool
	force    bool
}

// newNewCmd creates the new command.
func newNewCmd() *cobra.Command {
	flags := &newFlags{}

	cmd := &cobra.Command{
		Use:   "new <course> [title]",
		Short: "Create a note from the course's template",
		Long: `Create a Typst note for a course.

The template is taken from the first accessible source in the config
(local paths, remote release repositories, then the built-in package).
The note is written to <notes_dir>/<course>/<lectures|assignments|labs|notes>/.

Examples:
  noter new 02101                          # Lecture note for today
  noter new 02101 "Week 1" -t assignment   # Assignment named by its title
  noter new 02101 -t lab --var lab_setup="Bench 4"
  noter new 02101 --section Questions      # Append an extra section
  noter new 02101 --semester "2025 Fall"   # Override the semester label
  noter new 02101 --stdout                 # Print instead of writing
  noter new 02101 --refresh                # Re-download the template first`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 && flags.title == "" {
				flags.title = args[1]
			}
			return runNew(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.noteType, "type", "t", string(manifest.Lecture), "Note type: lecture, assignment, lab or other")
	cmd.Flags().StringVar(&flags.title, "title", "", "Note title")
	cmd.Flags().StringVar(&flags.date, "date", "", "Note date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&flags.author, "author", "", "Author (default from config)")
	cmd.Flags().StringVar(&flags.semester, "semester", "", "Semester label (default derived from the date and config)")
	cmd.Flags().StringArrayVar(&flags.vars, "var", nil, "Template variable as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&flags.sections, "section", nil, "Extra section title (repeatable)")
	cmd.Flags().StringVar(&flags.variant, "variant", "", "Use the variant with this id")
	cmd.Flags().StringVar(&flags.source, "source", "", "Only consider this source (plus the built-in fallback)")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "Ignore the package cache and re-download")
	cmd.Flags().BoolVar(&flags.stdout, "stdout", false, "Print the note instead of writing it")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing note file")

	return cmd
}

// runNew executes the new command.
func runNew(cmd *cobra.Command, course string, flags *newFlags) error {
	printer := newPrinter(cmd)

	req, err := buildNewRequest(course, flags)
	if err != nil {
		printer.Error(err)
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		printer.Error(err)
		return err
	}
	if err := a.onlySource(flags.source); err != nil {
		printer.Error(err)
		return err
	}

	req.Sources = a.sources
	md := a.cfg.Metadata(course, flags.title, flags.date, time.Now())
	if flags.author != "" {
		md.Author = flags.author
	}
	if flags.semester != "" {
		md.Semester = flags.semester
	}
	md.Variables = req.Metadata.Variables
	req.Metadata = md

	result, err := a.engine.Generate(cmd.Context(), req)
	if err != nil {
		return fail(printer, err)
	}

	if flags.stdout {
		if printer.IsJSON() {
			return printer.WriteJSON(result)
		}
		printer.Print("%s", result.Text)
		return nil
	}

	path, err := notefile.Path(a.notesDir, course, req.NoteType, result.Filename)
	if err != nil {
		return fail(printer, err)
	}
	if err := notefile.Write(path, []byte(result.Text), flags.force); err != nil {
		return fail(printer, err)
	}

	if printer.IsJSON() {
		return printer.WriteJSON(map[string]any{
			"path":     path,
			"filename": result.Filename,
			"report":   result.Report,
		})
	}
	for _, skipped := range result.Report.Skipped {
		printer.Warn("download failed for source %s, used the next source", skipped)
	}
	printer.Print("Created %s\n", path)
	printer.Stderr("template %s %s (%s), variant %s\n",
		result.Report.Source, result.Report.Version, result.Report.Signal, result.Report.Variant)
	return nil
}

// buildNewRequest validates the course argument and the flags that need no config.
func buildNewRequest(course string, flags *newFlags) (engine.Request, error) {
	if err := notefile.CheckCourseCode(course); err != nil {
		return engine.Request{}, output.NewUserErrorWithCause(err.Error(), err)
	}
	nt, err := manifest.ParseNoteType(flags.noteType)
	if err != nil {
		return engine.Request{}, output.NewUserErrorWithCause(err.Error(), err)
	}
	if flags.date != "" {
		if _, err := time.Parse(time.DateOnly, flags.date); err != nil {
			return engine.Request{}, output.NewUserError(fmt.Sprintf("invalid --date %q (want YYYY-MM-DD)", flags.date))
		}
	}

	vars, err := parseVars(flags.vars)
	if err != nil {
		return engine.Request{}, err
	}

	req := engine.Request{
		NoteType:      nt,
		ForceRefresh:  flags.refresh,
		Variant:       flags.variant,
		ExtraSections: flags.sections,
	}
	req.Metadata.Variables = vars
	return req, nil
}

// parseVars parses key=value pairs.
func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, output.NewUserError(fmt.Sprintf("invalid --var %q (want key=value)", pair))
		}
		vars[key] = value
	}
	return vars, nil
}
