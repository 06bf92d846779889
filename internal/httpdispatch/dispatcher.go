// Package httpdispatch builds and executes exactly one HTTP request,
// returning either a live response or a synthetic transport-failure
// response — never a bare error — so that every dispatch produces a
// result record, across four request body shapes (json-text, raw-text,
// xml-text, form-pairs).
package httpdispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the per-request connect/read timeout applied
	// when a dispatcher isn't configured with one.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects bounds the number of redirect hops followed.
	DefaultMaxRedirects = 10
	// MaxBodyForEvaluation caps the body bytes handed to assertion and
	// extractor evaluation.
	MaxBodyForEvaluation = 1 << 20 // 1 MiB
	// MaxBodyOnResult caps the body bytes preserved on the result record.
	MaxBodyOnResult = 4 << 10 // 4 KiB

	userAgent = "rmeter/1"
)

// Response is the outcome of one dispatch: either a live HTTP response
// or, on transport failure, status 0 with Err set. Body is capped at
// MaxBodyForEvaluation.
type Response struct {
	Status     int
	Headers    map[string][]string // lowercased keys
	Body       []byte
	ElapsedMs  int64
	SizeBytes  int64
	Err        string
}

// Request is the fully-resolved (post-template-expansion) request to
// dispatch.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    *Body
}

// BodyKind discriminates the four resolved body shapes.
type BodyKind string

const (
	BodyJSONText  BodyKind = "json_text"
	BodyRawText   BodyKind = "raw_text"
	BodyXMLText   BodyKind = "xml_text"
	BodyFormPairs BodyKind = "form_pairs"
)

// Body is the resolved request body (after template expansion).
type Body struct {
	Kind  BodyKind
	Text  string
	Pairs []FormPair
}

// FormPair is one resolved form field.
type FormPair struct {
	Name  string
	Value string
}

// Dispatcher builds and executes HTTP requests with a shared client.
type Dispatcher struct {
	client *http.Client
}

// New builds a Dispatcher. A zero timeout uses DefaultTimeout; maxRedirects
// <= 0 uses DefaultMaxRedirects.
func New(timeout time.Duration, maxRedirects int) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return &Dispatcher{client: client}
}

// Do sends exactly one HTTP request and always returns a Response —
// on transport failure (DNS, TCP, TLS, timeout, body read), Status is
// 0, ElapsedMs is the time to failure, and Err carries the reason.
func (d *Dispatcher) Do(ctx context.Context, req Request) Response {
	start := time.Now()

	body, contentType, err := buildBody(req.Body)
	if err != nil {
		return Response{Status: 0, ElapsedMs: time.Since(start).Milliseconds(), Err: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{Status: 0, ElapsedMs: time.Since(start).Milliseconds(), Err: err.Error()}
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", userAgent)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "*/*")
	}

	resp, err := d.client.Do(httpReq)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return Response{Status: 0, ElapsedMs: elapsed, Err: err.Error()}
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, MaxBodyForEvaluation)
	respBody, err := io.ReadAll(limited)
	var overflow int64
	if err == nil {
		// Count, but do not keep, whatever lies past the evaluation cap,
		// so SizeBytes is the full response size.
		overflow, err = io.Copy(io.Discard, resp.Body)
	}
	elapsed = time.Since(start).Milliseconds()
	if err != nil {
		return Response{Status: 0, ElapsedMs: elapsed, Err: err.Error()}
	}

	headers := make(map[string][]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[strings.ToLower(k)] = v
	}

	return Response{
		Status:    resp.StatusCode,
		Headers:   headers,
		Body:      respBody,
		ElapsedMs: elapsed,
		SizeBytes: int64(len(respBody)) + overflow,
	}
}

// TruncatedBody returns the first MaxBodyOnResult bytes of body, the
// slice preserved on the result record.
func TruncatedBody(body []byte) []byte {
	if len(body) <= MaxBodyOnResult {
		return body
	}
	return body[:MaxBodyOnResult]
}

func buildBody(b *Body) (io.Reader, string, error) {
	if b == nil {
		return nil, "", nil
	}

	switch b.Kind {
	case BodyJSONText:
		// Text is already-expanded JSON; validate is unnecessary — the
		// engine sends exactly what the template produced.
		return bytes.NewReader([]byte(b.Text)), "application/json", nil
	case BodyXMLText:
		return bytes.NewReader([]byte(b.Text)), "application/xml", nil
	case BodyRawText:
		return bytes.NewReader([]byte(b.Text)), "text/plain", nil
	case BodyFormPairs:
		form := url.Values{}
		for _, p := range b.Pairs {
			form.Add(p.Name, p.Value)
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	default:
		return nil, "", nil
	}
}
