package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/multierr"
)

//go:embed schema.json
var schemaJSON []byte

var compiledSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("rmeter-plan.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("plan: invalid embedded schema: %v", err))
	}
	s, err := c.Compile("rmeter-plan.json")
	if err != nil {
		panic(fmt.Sprintf("plan: schema compile failed: %v", err))
	}
	compiledSchema = s
}

// ValidationError reports one or more defects found while validating a
// plan. Unwrap returns every defect individually (for errors.Is/As),
// while Error() combines them with multierr into a single
// human-readable message.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	return multierr.Combine(e.Errors...).Error()
}

func (e *ValidationError) Unwrap() []error {
	return e.Errors
}

// Validate checks raw wire-format plan JSON against the plan schema
// (unknown rule kinds fail here) and then against the semantic
// invariants (thread/status-range/loop bounds). It returns a decoded
// Plan only when both passes succeed.
func Validate(raw []byte) (*Plan, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Errors: []error{fmt.Errorf("invalid JSON: %w", err)}}
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return nil, &ValidationError{Errors: []error{fmt.Errorf("schema: %w", err)}}
	}

	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ValidationError{Errors: []error{fmt.Errorf("decode: %w", err)}}
	}

	if errs := ValidateSemantics(&p); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &p, nil
}

// ValidateSemantics checks the cross-field invariants the JSON Schema
// cannot express: thread counts, status-code ranges, loop bounds, and
// at-least-one-enabled-request.
func ValidateSemantics(p *Plan) []error {
	var errs []error

	if !p.HasWork() {
		errs = append(errs, fmt.Errorf("plan %q has no enabled thread-group with an enabled request", p.ID))
	}

	for _, g := range p.ThreadGroups {
		if g.NumThreads < 1 {
			errs = append(errs, fmt.Errorf("thread-group %q: num_threads must be >= 1, got %d", g.Name, g.NumThreads))
		}
		if g.RampUpSeconds < 0 {
			errs = append(errs, fmt.Errorf("thread-group %q: ramp_up_seconds must be >= 0", g.Name))
		}

		switch g.Loop.Kind {
		case LoopFinite:
			if g.Loop.N < 1 {
				errs = append(errs, fmt.Errorf("thread-group %q: finite loop count must be >= 1", g.Name))
			}
		case LoopDuration:
			if g.Loop.Secs < 1 {
				errs = append(errs, fmt.Errorf("thread-group %q: duration loop must be >= 1 second", g.Name))
			}
		case LoopInfinite:
		default:
			errs = append(errs, fmt.Errorf("thread-group %q: unknown loop kind %q", g.Name, g.Loop.Kind))
		}

		for _, r := range g.Requests {
			for _, a := range r.Assertions {
				if a.Kind == AssertStatusCodeRange {
					if a.StatusMin < 100 || a.StatusMax > 599 || a.StatusMin > a.StatusMax {
						errs = append(errs, fmt.Errorf(
							"request %q: status_code_range [%d,%d] invalid (must be within [100,599] and min<=max)",
							r.Name, a.StatusMin, a.StatusMax))
					}
				}
				if a.Kind == AssertResponseTimeBelow && a.ThresholdMs <= 0 {
					errs = append(errs, fmt.Errorf("request %q: response_time_below threshold must be > 0", r.Name))
				}
			}
			for _, x := range r.Extractors {
				if x.Kind == ExtractRegex && x.Group < 0 {
					errs = append(errs, fmt.Errorf("request %q: regex extractor group must be >= 0", r.Name))
				}
			}
		}
	}

	for _, c := range p.CSVSources {
		for i, row := range c.Rows {
			if len(row) != len(c.Columns) {
				errs = append(errs, fmt.Errorf("csv source %q: row %d has %d cells, want %d", c.Name, i, len(row), len(c.Columns)))
			}
		}
	}

	return errs
}
