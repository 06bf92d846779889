// Package assertions implements C4: scoring one HTTP response against
// an ordered list of assertion rules.
//
// Follows github.com/georgi-georgiev/testmesh's
// runner/assertions/evaluator.go, narrowed from its expr-lang/expr
// generic boolean-expression evaluation — assertion
// rules here are a closed tagged-variant set, so no rule variant ever
// needs a free-form expression — down to a plain switch over
// plan.AssertionKind, reusing the shared internal/jsonpath walker for
// the json_path variant.
package assertions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/Rixmerz/rmeter/internal/jsonpath"
	"github.com/Rixmerz/rmeter/internal/plan"
)

// Input is the evaluation-time view of an HTTP response (or synthetic
// failure response) that assertions run against.
type Input struct {
	StatusCode int
	Headers    map[string][]string // lowercased keys
	Body       []byte              // already capped to httpdispatch.MaxBodyForEvaluation
	ElapsedMs  int64
	// TransportFailed marks a dispatch that never produced a real
	// response; every assertion fails except response_time_below,
	// which still compares against the time-to-failure.
	TransportFailed bool
}

// Outcome is the per-rule result of scoring one assertion.
type Outcome struct {
	ID      string
	Name    string
	Passed  bool
	Message string
}

// Evaluate scores in against every rule, in list order.
func Evaluate(rules []plan.AssertionRule, in Input) []Outcome {
	outcomes := make([]Outcome, 0, len(rules))
	for _, r := range rules {
		outcomes = append(outcomes, evaluateOne(r, in))
	}
	return outcomes
}

// AllPassed reports whether every outcome passed — vacuously true for
// an empty list.
func AllPassed(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.Passed {
			return false
		}
	}
	return true
}

func evaluateOne(r plan.AssertionRule, in Input) Outcome {
	out := Outcome{ID: r.ID, Name: r.Name}

	if in.TransportFailed && r.Kind != plan.AssertResponseTimeBelow {
		out.Passed = false
		out.Message = "no response: transport failure"
		return out
	}

	switch r.Kind {
	case plan.AssertStatusCodeEquals:
		out.Passed = in.StatusCode == r.StatusCode
		out.Message = fmt.Sprintf("status %d, expected %d", in.StatusCode, r.StatusCode)

	case plan.AssertStatusCodeNotEquals:
		out.Passed = in.StatusCode != r.StatusCode
		out.Message = fmt.Sprintf("status %d, expected not %d", in.StatusCode, r.StatusCode)

	case plan.AssertStatusCodeRange:
		out.Passed = in.StatusCode >= r.StatusMin && in.StatusCode <= r.StatusMax
		out.Message = fmt.Sprintf("status %d, expected [%d,%d]", in.StatusCode, r.StatusMin, r.StatusMax)

	case plan.AssertBodyContains:
		body := decodeBody(in.Body)
		out.Passed = strings.Contains(body, r.Substring)
		out.Message = fmt.Sprintf("body does not contain %q", r.Substring)

	case plan.AssertBodyNotContains:
		body := decodeBody(in.Body)
		out.Passed = !strings.Contains(body, r.Substring)
		out.Message = fmt.Sprintf("body contains %q", r.Substring)

	case plan.AssertJSONPath:
		out.Passed, out.Message = evalJSONPathAssertion(r, in.Body)

	case plan.AssertResponseTimeBelow:
		out.Passed = in.ElapsedMs < r.ThresholdMs
		out.Message = fmt.Sprintf("elapsed %dms, expected below %dms", in.ElapsedMs, r.ThresholdMs)

	case plan.AssertHeaderEquals:
		got, ok := headerValue(in.Headers, r.HeaderName)
		out.Passed = ok && got == r.HeaderValue
		out.Message = fmt.Sprintf("header %s = %q, expected %q", r.HeaderName, got, r.HeaderValue)

	case plan.AssertHeaderContains:
		got, ok := headerValue(in.Headers, r.HeaderName)
		out.Passed = ok && strings.Contains(got, r.HeaderValue)
		out.Message = fmt.Sprintf("header %s = %q, expected to contain %q", r.HeaderName, got, r.HeaderValue)

	default:
		out.Passed = false
		out.Message = fmt.Sprintf("unknown assertion kind %q", r.Kind)
	}

	return out
}

func evalJSONPathAssertion(r plan.AssertionRule, body []byte) (bool, string) {
	actual, err := jsonpath.Eval(body, r.Expr)
	if err == jsonpath.ErrNotJSON {
		return false, "body is not JSON"
	}
	if err != nil {
		return false, fmt.Sprintf("path %q not found", r.Expr)
	}

	var expected interface{}
	if len(r.ExpectedJSON) > 0 {
		if err := json.Unmarshal(r.ExpectedJSON, &expected); err != nil {
			return false, fmt.Sprintf("invalid expected_json: %v", err)
		}
	}

	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}
	return false, fmt.Sprintf("path %q = %v, expected %v", r.Expr, actual, expected)
}

func headerValue(headers map[string][]string, name string) (string, bool) {
	vs, ok := headers[strings.ToLower(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// decodeBody decodes body as UTF-8, replacing invalid byte sequences
// with U+FFFD so evaluation can always proceed.
func decodeBody(body []byte) string {
	return strings.ToValidUTF8(string(body), "�")
}
