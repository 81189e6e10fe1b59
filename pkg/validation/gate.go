package validation

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/morezero/resource-bus/pkg/resource"
)

const gateLogPrefix = "validation:gate"

var printer = message.NewPrinter(language.English)

// Policy decides what happens to bodies of verbs with no schema configured.
type Policy int

const (
	// Permissive lets bodies of verbs without a schema through unvalidated.
	Permissive Policy = iota
	// Strict rejects bodies of verbs without a schema.
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "permissive"
}

// ParsePolicy parses "strict" or "permissive".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	}
	return Permissive, fmt.Errorf("%s - unknown validation policy %q", gateLogPrefix, s)
}

// Gate accepts or rejects request bodies for an action.
type Gate struct {
	Registry *Registry
	Policy   Policy
	Logger   *slog.Logger
}

// NewGate creates a Gate. A nil registry behaves as an empty one.
func NewGate(reg *Registry, policy Policy, logger *slog.Logger) *Gate {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Gate{Registry: reg, Policy: policy, Logger: logger}
}

func (g *Gate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Validate returns req unchanged when its body is acceptable for action.
func (g *Gate) Validate(action resource.Action, req resource.Request) (resource.Request, error) {
	if !req.HasBody() {
		return req, nil
	}
	schema := action.Schema()
	if schema.Disabled {
		return req, nil
	}
	if schema.Ref == "" {
		if g.Policy == Strict {
			return req, resource.BadRequest(fmt.Sprintf("no schema registered for verb %s", action.Verb()))
		}
		return req, nil
	}

	if err := g.ValidateDocument(schema.Ref, req.Body); err != nil {
		return req, err
	}
	return req, nil
}

// ValidateDocument checks a JSON document against the schema registered under ref.
// An unknown ref is a configuration fault and yields an unlabeled error.
func (g *Gate) ValidateDocument(ref string, doc []byte) error {
	compiled, ok := g.Registry.Lookup(ref)
	if !ok {
		return fmt.Errorf("%s - no compiled schema %q", gateLogPrefix, ref)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return resource.BadRequest("body is not valid JSON").WithCause(err)
	}
	if err := compiled.Validate(inst); err != nil {
		msg := violationMessage(err)
		g.logger().Warn(fmt.Sprintf("%s - validation failed for schema %s: %s", gateLogPrefix, ref, msg))
		return resource.BadRequest(msg).WithCause(err)
	}
	return nil
}

func violationMessage(err error) string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	violations := collectViolations(verr)
	if len(violations) == 0 {
		return verr.Error()
	}
	return strings.Join(violations, ", ")
}

// collectViolations walks a ValidationError tree and collects leaf messages with their instance paths.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, leafMessage(verr))}
	}
	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

// leafMessage returns the description of a single violation without the location prefix
// that ValidationError.Error adds.
func leafMessage(verr *jsonschema.ValidationError) string {
	if verr.ErrorKind != nil {
		return verr.ErrorKind.LocalizedString(printer)
	}
	return verr.Error()
}
