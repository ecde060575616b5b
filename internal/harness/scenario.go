package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/reconcile"
)

//go:embed schema.cue
var schemaSource string

// Scenario is a reconciliation test case.
// Steps run in order against an empty store; assertions run once at the end.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps are the observations to reconcile, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final contact table.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step reconciles one observation.
type Step struct {
	// Observe is passed to Engine.Identify as given.
	Observe contact.Observation `yaml:"observe"`

	// Expect is the summary Identify must return. Nil skips the check.
	Expect *contact.Summary `yaml:"expect,omitempty"`

	// Error is the error code Identify must fail with.
	Error reconcile.ErrorCode `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is used by the *_count assertions.
	Count int `yaml:"count,omitempty"`

	// Contact is the id passed to Summarize (identity).
	Contact int64 `yaml:"contact,omitempty"`

	// Expect is the summary Summarize must return (identity).
	Expect *contact.Summary `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertContactCount   = "contact_count"
	AssertPrimaryCount   = "primary_count"
	AssertSecondaryCount = "secondary_count"
	AssertAuditClean     = "audit_clean"
	AssertIdentity       = "identity"
)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario document.
// Returns an error if the document is malformed, does not match the
// scenario schema, or contains unknown fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := checkSchema(doc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// checkSchema unifies doc with #Scenario from schema.cue.
func checkSchema(doc any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return err
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(value)
	return unified.Validate(cue.Concrete(true))
}

// validateScenario checks the rules the schema cannot express.
func validateScenario(s *Scenario) error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps: at least one step is required")
	}

	for i, step := range s.Steps {
		if step.Expect != nil && step.Error != "" {
			return fmt.Errorf("steps[%d]: expect and error are mutually exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		if a.Type == AssertIdentity && a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for identity", i)
		}
	}

	return nil
}
