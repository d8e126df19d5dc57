package mapfile

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nvandessel/cogmap/internal/activation"
)

// docValidate checks struct tags. Cross-references are checked by hand in
// Validate.
var docValidate *validator.Validate

func init() {
	docValidate = validator.New()
	_ = docValidate.RegisterValidation("notblank", validateNotBlank)
	_ = docValidate.RegisterValidation("activator", validateActivatorType)
	_ = docValidate.RegisterValidation("mode", validateMode)
	_ = docValidate.RegisterValidation("finite", validateFinite)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateActivatorType(fl validator.FieldLevel) bool {
	_, err := activation.ParseKind(fl.Field().String())
	return err == nil
}

func validateMode(fl validator.FieldLevel) bool {
	_, err := activation.ParseMode(fl.Field().String())
	return err == nil
}

func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Validate checks field constraints, name uniqueness and that every
// connection references concepts of its own map. All problems are reported
// together.
func (d *Document) Validate() error {
	var problems []string

	if err := docValidate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	mapNames := make(map[string]bool, len(d.Maps))
	for _, m := range d.Maps {
		if mapNames[m.Name] {
			problems = append(problems, fmt.Sprintf("duplicate map name %q", m.Name))
		}
		mapNames[m.Name] = true
		problems = append(problems, m.crossReferenceProblems()...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidDocument, strings.Join(problems, "\n  - "))
	}
	return nil
}

func (m *MapSpec) crossReferenceProblems() []string {
	var problems []string

	concepts := make(map[string]bool, len(m.Concepts))
	for _, c := range m.Concepts {
		if concepts[c.Name] {
			problems = append(problems, fmt.Sprintf("map %q: duplicate concept %q", m.Name, c.Name))
		}
		concepts[c.Name] = true
	}

	conns := make(map[string]bool, len(m.Connections))
	for _, c := range m.Connections {
		if conns[c.Name] {
			problems = append(problems, fmt.Sprintf("map %q: duplicate connection %q", m.Name, c.Name))
		}
		conns[c.Name] = true

		if c.From != "" && !concepts[c.From] {
			problems = append(problems, fmt.Sprintf("map %q: connection %q: unknown source concept %q", m.Name, c.Name, c.From))
		}
		if c.To != "" && !concepts[c.To] {
			problems = append(problems, fmt.Sprintf("map %q: connection %q: unknown target concept %q", m.Name, c.Name, c.To))
		}
	}
	return problems
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Document.")
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "activator":
		return fmt.Sprintf("%s: unknown activator type %q", field, fe.Value())
	case "mode":
		return fmt.Sprintf("%s: unknown mode %q (valid: BIPOLAR, BINARY)", field, fe.Value())
	case "finite":
		return field + " must be a finite number"
	case "min", "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}
