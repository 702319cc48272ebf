package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gorewood/noter/internal/engine"
	"github.com/gorewood/noter/internal/manifest"
	"github.com/gorewood/noter/internal/output"
)

// newTemplateCmd creates the template command and its subcommands.
func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Inspect and manage template packages",
		Long: `Inspect and manage template packages.

Remote sources are downloaded into the package cache on first use and
reused afterwards. Use update to install newer releases and reinstall to
replace a damaged or outdated cache entry.`,
	}
	cmd.AddCommand(newTemplateStatusCmd())
	cmd.AddCommand(newTemplateUpdateCmd())
	cmd.AddCommand(newTemplateReinstallCmd())
	cmd.AddCommand(newTemplateListCmd())
	return cmd
}

func newTemplateStatusCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show template sources and installed versions",
		Long: `Show each configured source in discovery order with whether it is
accessible and which versions are cached.

Examples:
  noter template status           # Cached state only, no network
  noter template status --remote  # Also look up the latest releases`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTemplateStatus(cmd, remote)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Look up the latest release of remote sources")
	return cmd
}

func runTemplateStatus(cmd *cobra.Command, remote bool) error {
	printer := newPrinter(cmd)
	a, err := loadApp(cmd)
	if err != nil {
		printer.Error(err)
		return err
	}

	statuses, err := a.engine.Status(cmd.Context(), a.sources, remote)
	if err != nil {
		return fail(printer, err)
	}

	if printer.IsJSON() {
		return printer.WriteJSON(map[string]any{
			"cache_dir": a.cacheDir,
			"sources":   statuses,
		})
	}

	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, []string{st.Name, string(st.Kind), yesNo(st.Enabled), yesNo(st.Accessible), installedSummary(st), latestSummary(st)})
	}
	printer.Table([]string{"SOURCE", "KIND", "ENABLED", "ACCESSIBLE", "INSTALLED", "LATEST"}, rows)

	for _, st := range statuses {
		for _, entry := range st.Corrupt() {
			printer.Warn("%s %s is corrupt: %s (run 'noter template reinstall %s')", st.Name, entry.Version, entry.Problem, st.Name)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func installedSummary(st engine.SourceStatus) string {
	var versions []string
	for _, entry := range st.Installed {
		v := entry.Version
		if entry.Corrupt {
			v += "!"
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return "-"
	}
	return strings.Join(versions, ", ")
}

func latestSummary(st engine.SourceStatus) string {
	switch {
	case st.Latest != "":
		return st.Latest
	case st.LatestError != "":
		return "unreachable"
	}
	return "-"
}

func newTemplateUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Install the latest release of each remote source",
		Long: `Install the version each enabled remote source resolves to without the
cache: its pinned version, or its newest release. Versions already cached
are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			a, err := loadApp(cmd)
			if err != nil {
				printer.Error(err)
				return err
			}
			return reportInstalls(printer, a.engine.Update(cmd.Context(), a.sources))
		},
	}
}

func newTemplateReinstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reinstall [source]",
		Short: "Re-download remote packages and replace cache entries",
		Long: `Re-download the resolved version of a remote source, or of every enabled
remote source, and replace the cache entry. This repairs corrupt entries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newPrinter(cmd)
			a, err := loadApp(cmd)
			if err != nil {
				printer.Error(err)
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			results, err := a.engine.Reinstall(cmd.Context(), a.sources, name)
			if err != nil {
				err = output.NewUserErrorWithCause(err.Error(), err)
				printer.Error(err)
				return err
			}
			return reportInstalls(printer, results)
		},
	}
}

// reportInstalls prints install results and fails if any install failed.
func reportInstalls(printer *output.Printer, results []engine.InstallResult) error {
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}

	if printer.IsJSON() {
		if err := printer.WriteJSON(map[string]any{"results": results, "failed": failed}); err != nil {
			return err
		}
	} else {
		if len(results) == 0 {
			printer.Println("No remote sources configured.")
		}
		for _, r := range results {
			switch {
			case r.Failed():
				printer.Check(output.CheckFail, r.Source, r.Error)
			case r.Fresh:
				printer.Check(output.CheckPass, r.Source, "installed "+r.Version)
			default:
				printer.Check(output.CheckPass, r.Source, r.Version+" already installed")
			}
		}
	}

	if failed > 0 {
		return output.NewSystemError(fmt.Sprintf("%d of %d sources failed", failed, len(results)))
	}
	return nil
}

func newTemplateListCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the variants of the resolved template package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTemplateList(cmd, refresh)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the package cache and re-download")
	return cmd
}

func runTemplateList(cmd *cobra.Command, refresh bool) error {
	printer := newPrinter(cmd)
	a, err := loadApp(cmd)
	if err != nil {
		printer.Error(err)
		return err
	}

	pkg, err := a.engine.Load(cmd.Context(), a.sources, refresh)
	if err != nil {
		return fail(printer, err)
	}
	m := pkg.Manifest

	if printer.IsJSON() {
		return printer.WriteJSON(map[string]any{
			"source":               pkg.Source.Name,
			"version":              pkg.Version,
			"package":              m.PackageName,
			"capabilities":         m.Capabilities,
			"variants":             m.Variants,
			"course_type_patterns": m.CourseTypePatterns,
		})
	}

	printer.KeyValue("package", fmt.Sprintf("%s %s", m.PackageName, pkg.Version.Version))
	printer.KeyValue("source", fmt.Sprintf("%s (%s)", pkg.Source.Name, pkg.Version.Signal))
	if len(m.Capabilities) > 0 {
		printer.KeyValue("capabilities", strings.Join(m.Capabilities, ", "))
	}
	printer.Println()

	rows := make([][]string, 0, len(m.Variants))
	for _, v := range m.Variants {
		rows = append(rows, []string{v.ID, string(v.NoteType), defaultMark(v), strings.Join(v.AppliesTo, " "), sectionTitles(v)})
	}
	printer.Table([]string{"VARIANT", "TYPE", "DEFAULT", "APPLIES TO", "SECTIONS"}, rows)
	return nil
}

func defaultMark(v manifest.Variant) string {
	if v.Default {
		return "*"
	}
	return ""
}

func sectionTitles(v manifest.Variant) string {
	titles := make([]string, 0, len(v.Sections))
	for _, s := range v.Sections {
		title := s.Title
		if s.Optional {
			title += "?"
		}
		titles = append(titles, title)
	}
	return strings.Join(titles, ", ")
}
