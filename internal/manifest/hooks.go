package manifest

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// HookKind names one of the closed set of context transformations.
type HookKind string

// Hook kinds.
const (
	HookDefault      HookKind = "default"
	HookUppercase    HookKind = "uppercase"
	HookLowercase    HookKind = "lowercase"
	HookTitleCase    HookKind = "title_case"
	HookDateFormat   HookKind = "date_format"
	HookRegexReplace HookKind = "regex_replace"
	HookDerive       HookKind = "derive"
)

// Hook is a declarative transformation applied to one context field.
//
// Which of the optional fields are read depends on Kind:
// default uses Value, date_format uses Format, regex_replace uses Pattern and
// Replacement, derive uses Template.
type Hook struct {
	Kind        HookKind `yaml:"kind"                  json:"kind"`
	Field       string   `yaml:"field"                 json:"field"`
	Value       string   `yaml:"value,omitempty"       json:"value,omitempty"`
	Format      string   `yaml:"format,omitempty"      json:"format,omitempty"`
	Pattern     string   `yaml:"pattern,omitempty"     json:"pattern,omitempty"`
	Replacement string   `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Template    string   `yaml:"template,omitempty"    json:"template,omitempty"`
}

// Validate checks a hook declaration.
func (h Hook) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Kind, validation.Required, validation.In(
			HookDefault, HookUppercase, HookLowercase, HookTitleCase,
			HookDateFormat, HookRegexReplace, HookDerive,
		)),
		validation.Field(&h.Field, validation.Required),
		validation.Field(&h.Format, validation.When(h.Kind == HookDateFormat, validation.Required)),
		validation.Field(&h.Pattern,
			validation.When(h.Kind == HookRegexReplace, validation.Required, validation.By(compiles))),
		validation.Field(&h.Template, validation.When(h.Kind == HookDerive, validation.Required)),
	)
}

func compiles(value any) error {
	pattern, _ := value.(string)
	if _, err := regexp.Compile(pattern); err != nil {
		return errors.New("must be a valid regular expression")
	}
	return nil
}
