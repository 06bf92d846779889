// Package pipeline runs one resolved request through template
// expansion, dispatch, and assertion/extractor evaluation, producing
// exactly one result record per enabled request — even when dispatch
// fails, in which case the synthetic failure response still feeds
// assertion/extractor evaluation rather than short-circuiting it.
package pipeline

import (
	"context"
	"time"

	"github.com/Rixmerz/rmeter/internal/assertions"
	"github.com/Rixmerz/rmeter/internal/extractors"
	"github.com/Rixmerz/rmeter/internal/httpdispatch"
	"github.com/Rixmerz/rmeter/internal/plan"
	"github.com/Rixmerz/rmeter/internal/vars"
)

// Result is the per-request outcome emitted as a test-result event.
type Result struct {
	RequestID        string
	RequestName      string
	GroupName        string
	Method           string
	URL              string
	StatusCode       int
	Err              string
	Timestamp        time.Time
	ElapsedMs        int64
	Headers          map[string][]string // lowercased keys
	Body             []byte              // truncated to httpdispatch.MaxBodyOnResult
	SizeBytes        int64
	AssertionsPassed bool
	Assertions       []assertions.Outcome
	Extractions      []extractors.Outcome
}

// Run expands req's templates against resolver, dispatches it, scores
// assertions and extractors against the response, and returns the
// result record plus the variables successfully extracted (to be
// folded into the iteration's resolver by the caller). groupName is
// carried onto the result record verbatim, identifying which
// thread-group produced it.
func Run(ctx context.Context, d *httpdispatch.Dispatcher, groupName string, req plan.Request, resolver *vars.Resolver) (Result, map[string]string) {
	timestamp := time.Now()
	url := vars.Expand(resolver, req.URL)
	headers := vars.ExpandHeaders(resolver, req.Headers)
	body := expandBody(resolver, req.Body)

	resp := d.Do(ctx, httpdispatch.Request{
		Method:  string(req.Method),
		URL:     url,
		Headers: headers,
		Body:    body,
	})

	assertionIn := assertions.Input{
		StatusCode:      resp.Status,
		Headers:         resp.Headers,
		Body:            resp.Body,
		ElapsedMs:       resp.ElapsedMs,
		TransportFailed: resp.Err != "",
	}
	assertionOutcomes := assertions.Evaluate(req.Assertions, assertionIn)

	extractorIn := extractors.Input{Headers: resp.Headers, Body: resp.Body}
	extractionOutcomes, bound := extractors.Evaluate(req.Extractors, extractorIn)

	result := Result{
		RequestID:        req.ID,
		RequestName:      req.Name,
		GroupName:        groupName,
		Method:           string(req.Method),
		URL:              url,
		StatusCode:       resp.Status,
		Err:              resp.Err,
		Timestamp:        timestamp,
		ElapsedMs:        resp.ElapsedMs,
		Headers:          resp.Headers,
		Body:             httpdispatch.TruncatedBody(resp.Body),
		SizeBytes:        resp.SizeBytes,
		AssertionsPassed: assertions.AllPassed(assertionOutcomes),
		Assertions:       assertionOutcomes,
		Extractions:      extractionOutcomes,
	}
	return result, bound
}

func expandBody(resolver *vars.Resolver, b *plan.RequestBody) *httpdispatch.Body {
	if b == nil {
		return nil
	}

	switch b.Kind {
	case plan.BodyJSONText:
		return &httpdispatch.Body{Kind: httpdispatch.BodyJSONText, Text: vars.Expand(resolver, b.Text)}
	case plan.BodyXMLText:
		return &httpdispatch.Body{Kind: httpdispatch.BodyXMLText, Text: vars.Expand(resolver, b.Text)}
	case plan.BodyRawText:
		return &httpdispatch.Body{Kind: httpdispatch.BodyRawText, Text: vars.Expand(resolver, b.Text)}
	case plan.BodyFormPairs:
		pairs := make([]httpdispatch.FormPair, len(b.Pairs))
		for i, p := range b.Pairs {
			pairs[i] = httpdispatch.FormPair{
				Name:  vars.Expand(resolver, p.Name),
				Value: vars.Expand(resolver, p.Value),
			}
		}
		return &httpdispatch.Body{Kind: httpdispatch.BodyFormPairs, Pairs: pairs}
	default:
		return nil
	}
}
