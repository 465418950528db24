// Package regform is the declarative registration form schema: one table of
// fields with per-category requirements, evaluated by a single generic
// validator instead of three parallel form code paths.
package regform

import "gatepass/model"

type Requirement int8

const (
	Hidden Requirement = iota
	Optional
	Required
)

type Field struct {
	Name         string
	Label        string
	MaxLen       int
	Requirements map[model.Category]Requirement
}

type Schema []Field

// For returns a field's requirement for a category; fields absent from the
// map are hidden for that category.
func (f Field) For(c model.Category) Requirement {
	r, ok := f.Requirements[c]
	if !ok {
		return Hidden
	}
	return r
}

// Validate checks submitted custom-field values for one category. It
// returns a map of field name to error tag, empty when the submission is
// valid.
// Values for fields hidden from the category are rejected rather than
// silently stored.
func (s Schema) Validate(c model.Category, values map[string]string) map[string]string {
	fieldErrors := make(map[string]string)

	byName := make(map[string]Field, len(s))
	for _, f := range s {
		byName[f.Name] = f
	}

	for name := range values {
		if _, ok := byName[name]; !ok {
			fieldErrors[name] = "unknown"
		}
	}

	for _, f := range s {
		value, present := values[f.Name]

		switch f.For(c) {
		case Hidden:
			if present && value != "" {
				fieldErrors[f.Name] = "not applicable"
			}
		case Required:
			if value == "" {
				fieldErrors[f.Name] = "required"
				continue
			}
			fallthrough
		case Optional:
			if f.MaxLen > 0 && len(value) > f.MaxLen {
				fieldErrors[f.Name] = "too long"
			}
		}
	}

	return fieldErrors
}

// Visible lists the fields a category's form should render.
func (s Schema) Visible(c model.Category) []Field {
	out := make([]Field, 0, len(s))
	for _, f := range s {
		if f.For(c) != Hidden {
			out = append(out, f)
		}
	}
	return out
}

// Default is the engine's built-in schema. Category-specific requirements
// are rows here, not branches anywhere else.
var Default = Schema{
	{
		Name:   "member_id",
		Label:  "Membership ID",
		MaxLen: 40,
		Requirements: map[model.Category]Requirement{
			model.CategoryMember: Required,
		},
	},
	{
		Name:   "host_member",
		Label:  "Hosting member",
		MaxLen: 100,
		Requirements: map[model.Category]Requirement{
			model.CategoryGuest: Required,
		},
	},
	{
		Name:   "invitation_code",
		Label:  "Invitation code",
		MaxLen: 40,
		Requirements: map[model.Category]Requirement{
			model.CategoryInvitee: Required,
		},
	},
	{
		Name:   "dietary_notes",
		Label:  "Dietary notes",
		MaxLen: 200,
		Requirements: map[model.Category]Requirement{
			model.CategoryMember:  Optional,
			model.CategoryGuest:   Optional,
			model.CategoryInvitee: Optional,
		},
	},
}
