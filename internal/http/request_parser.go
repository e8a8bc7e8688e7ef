package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxFormBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters. Missing,
// malformed or out-of-range values fall back to the current month.
func ParseMonthParams(query url.Values) MonthParams {
	now := time.Now()
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y >= 1900 && y <= 9999 {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			params.Month = m
		}
	}

	return params
}

// Prev returns the month before p.
func (p MonthParams) Prev() MonthParams {
	if p.Month == 1 {
		return MonthParams{Year: p.Year - 1, Month: 12}
	}
	return MonthParams{Year: p.Year, Month: p.Month - 1}
}

// Next returns the month after p.
func (p MonthParams) Next() MonthParams {
	if p.Month == 12 {
		return MonthParams{Year: p.Year + 1, Month: 1}
	}
	return MonthParams{Year: p.Year, Month: p.Month + 1}
}

// Title renders p as "March 2025".
func (p MonthParams) Title() string {
	return time.Month(p.Month).String() + " " + strconv.Itoa(p.Year)
}

// RequestBodyParser reads a request body once and exposes its fields,
// whether it was sent form-encoded (htmx default) or as JSON.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request. Bodies larger
// than 64 KiB fail to parse.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBytes+1))
		if p.err == nil && len(p.body) > maxFormBytes {
			p.err = errBodyTooLarge
		}
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a single sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Values returns every value of a repeated field in the order sent.
func (p *RequestBodyParser) Values(key string) []string {
	if p.jsonData != nil {
		switch val := p.jsonData[key].(type) {
		case nil:
			return nil
		case []any:
			out := make([]string, 0, len(val))
			for _, v := range val {
				out = append(out, sanitizeInput(stringValue(v)))
			}
			return out
		default:
			return []string{sanitizeInput(stringValue(val))}
		}
	}
	if p.formData == nil {
		return nil
	}
	out := make([]string, 0, len(p.formData[key]))
	for _, v := range p.formData[key] {
		out = append(out, sanitizeInput(v))
	}
	return out
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
