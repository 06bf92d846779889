package plan

import "encoding/json"

// AssertionKind discriminates the assertion rule variants of spec §3.
type AssertionKind string

const (
	AssertStatusCodeEquals    AssertionKind = "status_code_equals"
	AssertStatusCodeNotEquals AssertionKind = "status_code_not_equals"
	AssertStatusCodeRange     AssertionKind = "status_code_range"
	AssertBodyContains        AssertionKind = "body_contains"
	AssertBodyNotContains     AssertionKind = "body_not_contains"
	AssertJSONPath            AssertionKind = "json_path"
	AssertResponseTimeBelow   AssertionKind = "response_time_below"
	AssertHeaderEquals        AssertionKind = "header_equals"
	AssertHeaderContains      AssertionKind = "header_contains"
)

// AssertionRule is a closed tagged variant; only the fields relevant to
// Kind are populated.
type AssertionRule struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Kind AssertionKind `json:"kind"`

	StatusCode    int `json:"status_code,omitempty"`
	StatusMin     int `json:"status_min,omitempty"`
	StatusMax     int `json:"status_max,omitempty"`
	Substring     string `json:"substring,omitempty"`
	Expr          string `json:"expr,omitempty"`
	ExpectedJSON  json.RawMessage `json:"expected_json,omitempty"`
	ThresholdMs   int64  `json:"threshold_ms,omitempty"`
	HeaderName    string `json:"header_name,omitempty"`
	HeaderValue   string `json:"header_value,omitempty"`
}

// ExtractorKind discriminates the extractor rule variants of spec §3.
type ExtractorKind string

const (
	ExtractJSONPath ExtractorKind = "json_path"
	ExtractRegex    ExtractorKind = "regex"
	ExtractHeader   ExtractorKind = "header"
)

// ExtractorRule is a closed tagged variant; only the fields relevant to
// Kind are populated. The extracted string is stored into Variable.
type ExtractorRule struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Kind     ExtractorKind `json:"kind"`
	Variable string        `json:"variable"`

	Expr       string `json:"expr,omitempty"`
	Pattern    string `json:"pattern,omitempty"`
	Group      int    `json:"group,omitempty"`
	HeaderName string `json:"header_name,omitempty"`
}
