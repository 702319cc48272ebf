package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gorewood/noter/internal/manifest"
)

// isoDate is the layout dates arrive in from callers.
const isoDate = "2006-01-02"

func applyHook(ctx *Context, h manifest.Hook) error {
	current := ctx.Value(h.Field)

	switch h.Kind {
	case manifest.HookDefault:
		if current == "" {
			ctx.set(h.Field, h.Value)
		}
	case manifest.HookUppercase:
		ctx.set(h.Field, strings.ToUpper(current))
	case manifest.HookLowercase:
		ctx.set(h.Field, strings.ToLower(current))
	case manifest.HookTitleCase:
		ctx.set(h.Field, cases.Title(language.Und).String(current))
	case manifest.HookDateFormat:
		// Values that are not ISO dates are left as given.
		if t, err := time.Parse(isoDate, current); err == nil {
			ctx.set(h.Field, t.Format(h.Format))
		}
	case manifest.HookRegexReplace:
		re, err := regexp.Compile(h.Pattern)
		if err != nil {
			return fmt.Errorf("compiling pattern: %w", err)
		}
		ctx.set(h.Field, re.ReplaceAllString(current, h.Replacement))
	case manifest.HookDerive:
		derived, err := expand(h.Template, ctx)
		if err != nil {
			return err
		}
		ctx.set(h.Field, derived)
	default:
		return fmt.Errorf("unknown hook kind %q", h.Kind)
	}
	return nil
}
