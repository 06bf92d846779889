// Package jsonpath implements a single conservative JSONPath subset
// shared by both the assertion and extractor evaluators: dotted or
// "$."-rooted field access, numeric indexing, and a wildcard "*" that
// matches any single element, yielding an array of matches. Kept as
// one walker shared by internal/assertions and internal/extractors so
// the two evaluators can never drift on what counts as a valid path.
//
// Follows the gjson-based Evaluator.EvaluateJSONPath/extractFromInterface
// pair in github.com/georgi-georgiev/testmesh's
// internal/runner/assertions/evaluator.go, reusing github.com/tidwall/gjson
// to check the body is valid JSON and decode it into generic values; the
// field, index and wildcard lookups themselves are done by walk.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotFound indicates the path matched nothing in the document.
var ErrNotFound = fmt.Errorf("jsonpath: path not found")

// ErrNotJSON indicates the body could not be parsed as JSON at all.
var ErrNotJSON = fmt.Errorf("body is not JSON")

// Eval navigates body (raw JSON bytes) per expr and returns the
// matched value: a JSON scalar (string, float64, bool, nil), a
// []interface{}, or a map[string]interface{}. A wildcard segment
// always yields a []interface{} of per-element matches. The document
// is decoded with gjson rather than encoding/json, consistent with how
// the rest of the evaluator reads response bodies.
func Eval(body []byte, expr string) (interface{}, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrNotJSON
	}

	doc := gjson.ParseBytes(body).Value()
	segments := splitPath(expr)
	return walk(doc, segments)
}

func splitPath(expr string) []string {
	expr = strings.TrimPrefix(expr, "$.")
	expr = strings.TrimPrefix(expr, "$")
	expr = strings.TrimPrefix(expr, ".")
	if expr == "" {
		return nil
	}
	return strings.Split(expr, ".")
}

func walk(doc interface{}, segments []string) (interface{}, error) {
	current := doc
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if seg == "*" {
			arr, ok := current.([]interface{})
			if !ok {
				return nil, ErrNotFound
			}
			remaining := segments[i+1:]
			if len(remaining) == 0 {
				return arr, nil
			}
			out := make([]interface{}, 0, len(arr))
			for _, elem := range arr {
				v, err := walk(elem, remaining)
				if err != nil {
					continue
				}
				out = append(out, v)
			}
			return out, nil
		}

		if idx, err := strconv.Atoi(seg); err == nil {
			arr, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, ErrNotFound
			}
			current = arr[idx]
			continue
		}

		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, ErrNotFound
		}
		v, exists := m[seg]
		if !exists {
			return nil, ErrNotFound
		}
		current = v
	}
	return current, nil
}
