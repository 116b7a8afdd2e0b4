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

	"tipid/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// ExpenseQuery is the filter accepted by GET /api/expenses. At most one
// filter applies, in the order range, category, essential.
type ExpenseQuery struct {
	From      time.Time
	To        time.Time
	HasRange  bool
	Category  string
	Essential *bool
}

// ParseExpenseQuery reads from/to (YYYY-MM-DD, inclusive), category and
// essential from the query string. A missing bound of a range is open.
func ParseExpenseQuery(query url.Values, loc *time.Location) (ExpenseQuery, error) {
	var q ExpenseQuery

	from := strings.TrimSpace(query.Get("from"))
	to := strings.TrimSpace(query.Get("to"))
	if from != "" {
		t, err := core.ParseDate(from, loc)
		if err != nil {
			return q, errors.New("Invalid from date")
		}
		q.From = t
		q.HasRange = true
	}
	if to != "" {
		t, err := core.ParseDate(to, loc)
		if err != nil {
			return q, errors.New("Invalid to date")
		}
		q.To = t
		q.HasRange = true
	}
	if q.HasRange && !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, errors.New("from must not be after to")
	}

	q.Category = sanitizeInput(query.Get("category"))

	if v := strings.TrimSpace(query.Get("essential")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, errors.New("essential must be true or false")
		}
		q.Essential = &b
	}
	return q, nil
}

// RequestBodyParser reads a JSON object or form-encoded body once and
// exposes its fields as strings, so numeric JSON values and quoted ones
// are treated alike.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a sanitized string value, or "" when the key is absent.
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

// GetRaw returns the value without trimming. Used for passwords.
func (p *RequestBodyParser) GetRaw(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// GetBool accepts JSON booleans and the strings strconv.ParseBool does,
// plus "on" from checkboxes.
func (p *RequestBodyParser) GetBool(key string) bool {
	v := strings.ToLower(p.Get(key))
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

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
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// sanitizeInput trims and removes control characters except tab, newline
// and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
