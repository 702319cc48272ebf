package source

import (
	"strings"
	"testing"
)

func names(descs []Descriptor) []string {
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Name)
	}
	return out
}

func TestNormalizeAppendsBuiltin(t *testing.T) {
	descs := []Descriptor{
		{Name: "mine", Kind: KindLocal, Location: "/tmp/mine"},
	}

	got, err := Normalize(descs, true)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if want := "mine,builtin"; strings.Join(names(got), ",") != want {
		t.Errorf("Normalize() order = %v, want %s", names(got), want)
	}
	if got[1].Kind != KindBuiltin || !got[1].IsEnabled() {
		t.Errorf("appended builtin = %+v, want enabled builtin", got[1])
	}
}

func TestNormalizeMovesBuiltinLast(t *testing.T) {
	descs := []Descriptor{
		{Name: "builtin", Kind: KindBuiltin},
		{Name: "remote", Kind: KindRemote, Location: "owner/repo"},
	}

	got, err := Normalize(descs, true)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if want := "remote,builtin"; strings.Join(names(got), ",") != want {
		t.Errorf("Normalize() order = %v, want %s", names(got), want)
	}
}

func TestNormalizeBuiltinDisabled(t *testing.T) {
	tests := []struct {
		name       string
		descs      []Descriptor
		useBuiltin bool
		wantNames  string
		wantLastOn bool
	}{
		{
			name:       "fallback flag off and builtin absent",
			descs:      []Descriptor{{Name: "a", Kind: KindLocal, Location: "/a"}},
			useBuiltin: false,
			wantNames:  "a",
		},
		{
			name: "explicitly disabled builtin kept but disabled",
			descs: []Descriptor{
				{Name: "builtin", Kind: KindBuiltin, Enabled: Bool(false)},
				{Name: "a", Kind: KindLocal, Location: "/a"},
			},
			useBuiltin: true,
			wantNames:  "a,builtin",
			wantLastOn: false,
		},
		{
			name: "listed builtin with fallback flag off",
			descs: []Descriptor{
				{Name: "builtin", Kind: KindBuiltin},
			},
			useBuiltin: false,
			wantNames:  "builtin",
			wantLastOn: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.descs, tt.useBuiltin)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if strings.Join(names(got), ",") != tt.wantNames {
				t.Errorf("Normalize() order = %v, want %s", names(got), tt.wantNames)
			}
			last := got[len(got)-1]
			if last.Kind == KindBuiltin && last.IsEnabled() != tt.wantLastOn {
				t.Errorf("builtin enabled = %v, want %v", last.IsEnabled(), tt.wantLastOn)
			}
		})
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		descs   []Descriptor
		wantErr string
	}{
		{
			name: "duplicate names",
			descs: []Descriptor{
				{Name: "a", Kind: KindLocal, Location: "/a"},
				{Name: "a", Kind: KindRemote, Location: "o/r"},
			},
			wantErr: "duplicate source name",
		},
		{
			name:    "unknown kind",
			descs:   []Descriptor{{Name: "a", Kind: "ftp", Location: "x"}},
			wantErr: "kind",
		},
		{
			name:    "remote without location",
			descs:   []Descriptor{{Name: "a", Kind: KindRemote}},
			wantErr: "location",
		},
		{
			name:    "escaping path override",
			descs:   []Descriptor{{Name: "a", Kind: KindLocal, Location: "/a", PathOverride: "../b"}},
			wantErr: "path_override",
		},
		{
			name:    "reserved builtin name",
			descs:   []Descriptor{{Name: "builtin", Kind: KindLocal, Location: "/a"}},
			wantErr: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.descs, true)
			if err == nil {
				t.Fatal("Normalize() error = nil, want error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(tt.wantErr)) {
				t.Errorf("Normalize() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDescriptorRoot(t *testing.T) {
	d := Descriptor{Name: "a", Kind: KindLocal, Location: "/pkgs/a", PathOverride: "template"}
	if got, want := d.Root(), "/pkgs/a/template"; got != want {
		t.Errorf("Root() = %q, want %q", got, want)
	}
}
