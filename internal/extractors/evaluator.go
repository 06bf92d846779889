// Package extractors implements C5: pulling variables out of one HTTP
// response per an ordered list of extractor rules.
//
// Follows the extractFromInterface/regex paths of
// github.com/georgi-georgiev/testmesh's runner/assertions/evaluator.go,
// narrowed to a closed three-variant rule set and reusing
// the shared internal/jsonpath walker so json_path extraction can
// never disagree with json_path assertion about what a path matches.
// A failed extraction never aborts the pipeline — it is recorded and
// the run continues.
package extractors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rixmerz/rmeter/internal/jsonpath"
	"github.com/Rixmerz/rmeter/internal/plan"
)

// Input is the evaluation-time view of an HTTP response that
// extractors run against.
type Input struct {
	Headers map[string][]string // lowercased keys
	Body    []byte
}

// Outcome is the per-rule result of one extraction attempt.
type Outcome struct {
	ID       string
	Name     string
	Variable string
	Success  bool
	Value    string
	Message  string
}

// Evaluate runs every rule against in, in list order, and returns both
// the per-rule outcomes and the map of variables successfully bound —
// ready to merge into the iteration scope.
func Evaluate(rules []plan.ExtractorRule, in Input) ([]Outcome, map[string]string) {
	outcomes := make([]Outcome, 0, len(rules))
	bound := make(map[string]string)

	for _, r := range rules {
		out := evaluateOne(r, in)
		outcomes = append(outcomes, out)
		if out.Success {
			bound[out.Variable] = out.Value
		}
	}
	return outcomes, bound
}

func evaluateOne(r plan.ExtractorRule, in Input) Outcome {
	out := Outcome{ID: r.ID, Name: r.Name, Variable: r.Variable}

	switch r.Kind {
	case plan.ExtractJSONPath:
		v, err := jsonpath.Eval(in.Body, r.Expr)
		if err == jsonpath.ErrNotJSON {
			out.Message = "body is not JSON"
			return out
		}
		if err != nil {
			out.Message = fmt.Sprintf("path %q not found", r.Expr)
			return out
		}
		if !isScalar(v) {
			out.Message = fmt.Sprintf("path %q did not resolve to a scalar", r.Expr)
			return out
		}
		out.Value = stringify(v)
		out.Success = true

	case plan.ExtractRegex:
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			out.Message = fmt.Sprintf("invalid pattern: %v", err)
			return out
		}
		match := re.FindSubmatch(in.Body)
		if match == nil || r.Group >= len(match) {
			out.Message = fmt.Sprintf("pattern %q did not match", r.Pattern)
			return out
		}
		out.Value = string(match[r.Group])
		out.Success = true

	case plan.ExtractHeader:
		vs, ok := in.Headers[strings.ToLower(r.HeaderName)]
		if !ok || len(vs) == 0 {
			out.Message = fmt.Sprintf("header %s not present", r.HeaderName)
			return out
		}
		out.Value = vs[0]
		out.Success = true

	default:
		out.Message = fmt.Sprintf("unknown extractor kind %q", r.Kind)
	}

	return out
}

// isScalar reports whether v is a string, number, bool, or null — the
// only jsonpath.Eval results json_path extraction may bind into a
// variable. Objects and arrays fail the extraction instead of binding
// a Go-syntax dump of their contents.
func isScalar(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return false
	default:
		return true
	}
}

// stringify renders a jsonpath.Eval result (scalar or null) as the
// plain string stored into a variable.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
