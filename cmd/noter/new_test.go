package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorewood/noter/internal/output"
)

func TestNew_WritesNote(t *testing.T) {
	notesDir, _ := testEnv(t, "")

	stdout, stderr, err := runCmd(t, "new", "02101", "--date", "2025-09-01", "--title", "Intro")
	if err != nil {
		t.Fatalf("new error = %v\nstderr: %s", err, stderr)
	}

	path := filepath.Join(notesDir, "02101", "lectures", "2025-09-01-02101-lecture.typ")
	if !strings.Contains(stdout, "Created "+path) {
		t.Errorf("stdout = %q, want Created %s", stdout, path)
	}
	if !strings.Contains(stderr, "template builtin 0.1.0 (declared), variant lecture") {
		t.Errorf("stderr = %q, want template report", stderr)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading note: %v", err)
	}
	for _, want := range []string{
		"#import \"@local/noter-templates:0.1.0\":*\n",
		"  course-name: \"Introduction to Programming\",\n",
		"  author: \"Ada\",\n",
		"  semester: \"2025 Fall\",\n",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("note missing %q:\n%s", want, data)
		}
	}
}

func TestNew_ExistingFileConflicts(t *testing.T) {
	testEnv(t, "")
	args := []string{"new", "02101", "--date", "2025-09-01"}

	if _, _, err := runCmd(t, args...); err != nil {
		t.Fatalf("first new error = %v", err)
	}
	_, stderr, err := runCmd(t, args...)
	if output.GetExitCode(err) != output.ExitConflict {
		t.Fatalf("second new exit code = %d, want %d", output.GetExitCode(err), output.ExitConflict)
	}
	if !strings.Contains(stderr, "--force") {
		t.Errorf("stderr = %q, want --force hint", stderr)
	}
	if _, _, err := runCmd(t, append(args, "--force")...); err != nil {
		t.Errorf("new --force error = %v", err)
	}
}

func TestNew_Stdout(t *testing.T) {
	notesDir, _ := testEnv(t, "")

	stdout, _, err := runCmd(t, "new", "02101", "Week 1", "-t", "assignment", "--date", "2025-09-08", "--stdout",
		"--var", "references=Course book ch. 1", "--section", "Reflection")
	if err != nil {
		t.Fatalf("new --stdout error = %v", err)
	}
	for _, want := range []string{
		"#show: assignment.with(\n",
		"  title: \"Week 1\",\n",
		"  due-date: datetime(year: 2025, month: 9, day: 8),\n",
		"\n= References\n\nCourse book ch. 1\n",
		"\n= Reflection\n\n// TODO: Reflection\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if _, err := os.Stat(notesDir); !os.IsNotExist(err) {
		t.Errorf("--stdout created the notes dir")
	}
}

func TestNew_SemesterOverride(t *testing.T) {
	testEnv(t, "")

	stdout, _, err := runCmd(t, "new", "02101", "--date", "2025-09-01", "--semester", "Autumn 25", "--stdout")
	if err != nil {
		t.Fatalf("new --semester error = %v", err)
	}
	if !strings.Contains(stdout, "  semester: \"Autumn 25\",\n") {
		t.Errorf("stdout lacks semester override:\n%s", stdout)
	}
}

func TestNew_JSON(t *testing.T) {
	notesDir, _ := testEnv(t, "")

	stdout, _, err := runCmd(t, "--json", "new", "02101", "-t", "lab", "--date", "2025-09-01")
	if err != nil {
		t.Fatalf("new --json error = %v", err)
	}
	var result struct {
		Path     string `json:"path"`
		Filename string `json:"filename"`
		Report   struct {
			Source  string `json:"source"`
			Variant string `json:"variant"`
		} `json:"report"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if result.Path != filepath.Join(notesDir, "02101", "labs", "2025-09-01-02101-lab.typ") {
		t.Errorf("path = %q", result.Path)
	}
	if result.Report.Source != "builtin" || result.Report.Variant != "lab" {
		t.Errorf("report = %+v", result.Report)
	}
}

func TestNew_UserErrors(t *testing.T) {
	testEnv(t, "")
	tests := []struct {
		name string
		args []string
	}{
		{"unknown note type", []string{"new", "02101", "-t", "exam"}},
		{"bad date", []string{"new", "02101", "--date", "next monday"}},
		{"bad var", []string{"new", "02101", "--var", "novalue"}},
		{"variant of other type", []string{"new", "02101", "--variant", "lab"}},
		{"unknown source", []string{"new", "02101", "--source", "nope"}},
		{"course escapes notes dir", []string{"new", "../../escaped"}},
		{"nested course", []string{"new", "02101/extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCmd(t, tt.args...)
			if output.GetExitCode(err) != output.ExitUserError {
				t.Errorf("exit code = %d (%v), want %d", output.GetExitCode(err), err, output.ExitUserError)
			}
		})
	}
}

func TestNew_NoSourceIsSystemError(t *testing.T) {
	testEnv(t, "use_builtin_fallback: false\nsources:\n  - name: dtu\n    kind: remote\n    location: hollow/dtu\n")

	_, _, err := runCmd(t, "new", "02101")
	if output.GetExitCode(err) != output.ExitSystemError {
		t.Errorf("exit code = %d (%v), want %d", output.GetExitCode(err), err, output.ExitSystemError)
	}
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"room=308", "note=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if vars["room"] != "308" || vars["note"] != "a=b" {
		t.Errorf("parseVars() = %v", vars)
	}
	if vars, err := parseVars(nil); err != nil || vars != nil {
		t.Errorf("parseVars(nil) = %v, %v", vars, err)
	}
}
