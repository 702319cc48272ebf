package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := FetchFailed("owner/repo", cause)

	if !errors.Is(err, ErrFetchFailed) {
		t.Error("errors.Is(err, ErrFetchFailed) = false, want true")
	}
	if errors.Is(err, ErrCacheCorrupt) {
		t.Error("errors.Is(err, ErrCacheCorrupt) = true, want false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestErrorWrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("generating note: %w", VariantNotFound("lab", nil))
	if !errors.Is(err, ErrVariantNotFound) {
		t.Error("wrapped error lost its kind")
	}
	if got := NameOf(err); got != "lab" {
		t.Errorf("NameOf() = %q, want %q", got, "lab")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "kind only",
			err:  &Error{Kind: ErrSourceNotFound},
			want: "no accessible template source",
		},
		{
			name: "with name",
			err:  MissingVariable("Lab Setup", nil),
			want: "missing template variable: Lab Setup",
		},
		{
			name: "with name and cause",
			err:  VersionUnresolved("dtu", errors.New("pin 9.9.9 not in listing")),
			want: "template version unresolved: dtu: pin 9.9.9 not in listing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNameOfPlainError(t *testing.T) {
	if got := NameOf(errors.New("plain")); got != "" {
		t.Errorf("NameOf(plain) = %q, want empty", got)
	}
}

func TestKindOf(t *testing.T) {
	listing := FetchFailed("owner/repo", errors.New("offline"))
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"plain", errors.New("plain"), nil},
		{"direct", listing, ErrFetchFailed},
		{"outermost kind wins", VersionUnresolved("dtu", listing), ErrVersionUnresolved},
		{"wrapped", fmt.Errorf("loading: %w", listing), ErrFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
