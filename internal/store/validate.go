package store

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/meow-stack/meow-studio/internal/types"
)

var (
	nodeKindPattern   = regexp.MustCompile(`^[a-z][a-z0-9_.-]*$`)
	settingKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("node_kind", func(fl validator.FieldLevel) bool {
		return nodeKindPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("setting_key", func(fl validator.FieldLevel) bool {
		return settingKeyPattern.MatchString(fl.Field().String())
	})

	// Report fields by their manifest names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateComponent checks a component's settings before anything is
// written. Struct tags cover field rules; node ID uniqueness and
// connection endpoints are checked here.
func validateComponent(c *types.Component) error {
	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	seen := make(map[int]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	}
	for _, conn := range c.Connections {
		if !seen[conn.Source] || !seen[conn.Dest] {
			return fmt.Errorf("connection %d:%d -> %d:%d references a missing node",
				conn.Source, conn.SourcePort, conn.Dest, conn.DestPort)
		}
	}
	return nil
}

func formatValidationErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds %s characters", fe.Namespace(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
