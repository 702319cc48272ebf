package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/gorewood/noter/internal/builtin"
	"github.com/gorewood/noter/internal/config"
	"github.com/gorewood/noter/internal/manifest"
	"github.com/gorewood/noter/internal/output"
	"github.com/gorewood/noter/internal/source"
)

// checkResult holds the result of a single health check.
type checkResult struct {
	Name    string             `json:"name"`
	Status  output.CheckStatus `json:"status"`
	Message string             `json:"message"`
	Hint    string             `json:"hint,omitempty"`
}

// doctorSummary holds the counts of check results.
type doctorSummary struct {
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Failed   int `json:"failed"`
}

// newDoctorCmd creates the doctor command.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, sources and the package cache",
		Long: `Check noter's configuration and template sources.

Checks that the config file parses, every source's manifest loads, the
cache holds no corrupt entries and the notes directory exists. Nothing is
downloaded or repaired.

Examples:
  noter doctor          # Run all checks
  noter doctor --json   # Output results as JSON`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
}

// runDoctor executes the doctor command.
func runDoctor(cmd *cobra.Command, _ []string) error {
	printer := newPrinter(cmd)

	path := configPath(cmd)
	checks := []checkResult{checkConfigFile(path)}

	a, err := loadApp(cmd)
	if err != nil {
		checks = append(checks, checkResult{Name: "config", Status: output.CheckFail, Message: err.Error(), Hint: "fix " + path})
	} else {
		checks = append(checks, checkSources(a)...)
		checks = append(checks, checkDir("cache", a.cacheDir, "created on first download"))
		checks = append(checks, checkStaleCache(a))
		checks = append(checks, checkDir("notes", a.notesDir, "created by 'noter new'"))
	}

	summary := doctorSummary{}
	for _, c := range checks {
		switch c.Status {
		case output.CheckPass:
			summary.Passed++
		case output.CheckWarn:
			summary.Warnings++
		case output.CheckFail:
			summary.Failed++
		}
	}

	if printer.IsJSON() {
		return printer.WriteJSON(map[string]any{
			"version": version,
			"checks":  checks,
			"summary": summary,
		})
	}

	printer.Print("noter doctor %s\n\n", version)
	for _, c := range checks {
		printer.Check(c.Status, c.Name, c.Message)
		if c.Hint != "" {
			printer.Print("      → %s\n", c.Hint)
		}
	}
	printer.Print("\n%d passed, %d warnings, %d failed\n", summary.Passed, summary.Warnings, summary.Failed)
	return nil
}

func checkConfigFile(path string) checkResult {
	if path == "" {
		return checkResult{Name: "config file", Status: output.CheckWarn, Message: "no config directory", Hint: "set NOTER_CONFIG_HOME"}
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return checkResult{Name: "config file", Status: output.CheckPass, Message: "not found, using defaults (" + path + ")"}
	}
	if _, err := config.LoadFile(path); err != nil {
		return checkResult{Name: "config file", Status: output.CheckFail, Message: err.Error()}
	}
	return checkResult{Name: "config file", Status: output.CheckPass, Message: path}
}

// checkSources inspects each source without network access.
func checkSources(a *app) []checkResult {
	var results []checkResult
	for _, desc := range a.sources {
		name := "source " + desc.Name
		if !desc.IsEnabled() {
			results = append(results, checkResult{Name: name, Status: output.CheckPass, Message: "disabled"})
			continue
		}

		switch desc.Kind {
		case source.KindBuiltin:
			m, err := builtin.Manifest()
			if err != nil {
				results = append(results, checkResult{Name: name, Status: output.CheckFail, Message: err.Error()})
				continue
			}
			results = append(results, checkResult{
				Name: name, Status: output.CheckPass,
				Message: fmt.Sprintf("built-in %s %s, %d files", m.PackageName, m.DeclaredVersion, len(builtin.Files())),
			})

		case source.KindLocal:
			if !manifest.Exists(desc.Root()) {
				results = append(results, checkResult{
					Name: name, Status: output.CheckWarn,
					Message: "no " + manifest.FileName + " in " + desc.Root(),
					Hint:    "discovery will skip this source",
				})
				continue
			}
			m, err := manifest.LoadDir(desc.Root())
			if err != nil {
				results = append(results, checkResult{Name: name, Status: output.CheckFail, Message: err.Error()})
				continue
			}
			results = append(results, checkResult{Name: name, Status: output.CheckPass, Message: fmt.Sprintf("%s, %d variants", m.PackageName, len(m.Variants))})

		case source.KindRemote:
			results = append(results, checkRemote(a, desc))
		}
	}
	return results
}

func checkRemote(a *app, desc source.Descriptor) checkResult {
	name := "source " + desc.Name
	entries, err := a.store.Versions(desc.Name)
	if err != nil {
		return checkResult{Name: name, Status: output.CheckFail, Message: err.Error()}
	}

	var valid, corrupt []string
	for _, e := range entries {
		if e.Corrupt {
			corrupt = append(corrupt, e.Version)
		} else {
			valid = append(valid, e.Version)
		}
	}
	switch {
	case len(corrupt) > 0:
		return checkResult{
			Name: name, Status: output.CheckFail,
			Message: fmt.Sprintf("corrupt cache entries: %v", corrupt),
			Hint:    "run 'noter template reinstall " + desc.Name + "'",
		}
	case len(valid) == 0:
		return checkResult{
			Name: name, Status: output.CheckWarn,
			Message: "nothing cached for " + desc.Location,
			Hint:    "run 'noter template update' to download now",
		}
	}
	return checkResult{Name: name, Status: output.CheckPass, Message: fmt.Sprintf("cached %v", valid)}
}

// checkStaleCache flags cache directories of sources that are no longer
// configured as remotes.
func checkStaleCache(a *app) checkResult {
	cached, err := a.store.Sources()
	if err != nil {
		return checkResult{Name: "cache sources", Status: output.CheckFail, Message: err.Error()}
	}
	var stale []string
	for _, name := range cached {
		if desc, ok := source.Find(a.sources, name); !ok || desc.Kind != source.KindRemote {
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		return checkResult{
			Name: "cache sources", Status: output.CheckWarn,
			Message: fmt.Sprintf("cached packages for unconfigured sources: %v", stale),
			Hint:    "delete them from " + a.store.Root(),
		}
	}
	return checkResult{Name: "cache sources", Status: output.CheckPass, Message: fmt.Sprintf("%d cached sources", len(cached))}
}

func checkDir(name, dir, missing string) checkResult {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return checkResult{Name: name, Status: output.CheckPass, Message: dir + " (" + missing + ")"}
	case err != nil:
		return checkResult{Name: name, Status: output.CheckFail, Message: err.Error()}
	case !info.IsDir():
		return checkResult{Name: name, Status: output.CheckFail, Message: dir + " is not a directory"}
	}
	return checkResult{Name: name, Status: output.CheckPass, Message: dir}
}
