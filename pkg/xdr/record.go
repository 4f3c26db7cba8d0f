package xdr

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is a JSON object returned by the API. Records are kept untyped so
// fields this package does not model survive into the host platform's raw
// incident JSON unchanged.
type Record map[string]interface{}

// String returns the field as a string. Numbers are rendered without
// exponent; missing and null fields yield "".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the field as an integer when it holds a number or a numeric
// string.
func (r Record) Int64(key string) (int64, bool) {
	return toInt64(r[key])
}

// Objects returns the field as a list of records. Non-object elements are
// skipped.
func (r Record) Objects(key string) []Record {
	return ToRecords(r[key])
}

// ToRecords converts a decoded JSON list into records.
func ToRecords(v interface{}) []Record {
	switch list := v.(type) {
	case []Record:
		return list
	case []interface{}:
		out := make([]Record, 0, len(list))
		for _, item := range list {
			switch obj := item.(type) {
			case Record:
				out = append(out, obj)
			case map[string]interface{}:
				out = append(out, Record(obj))
			}
		}
		return out
	default:
		return nil
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Filter is one entry of a request_data.filters list.
type Filter struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// Sort is the request_data.sort clause.
type Sort struct {
	Field   string `json:"field"`
	Keyword string `json:"keyword"`
}

type filterBuilder []Filter

func (b *filterBuilder) in(field string, values []string) {
	if len(values) > 0 {
		*b = append(*b, Filter{Field: field, Operator: "in", Value: values})
	}
}

func (b *filterBuilder) gte(field string, ms int64) {
	if ms > 0 {
		*b = append(*b, Filter{Field: field, Operator: "gte", Value: ms})
	}
}

func (b *filterBuilder) lte(field string, ms int64) {
	if ms > 0 {
		*b = append(*b, Filter{Field: field, Operator: "lte", Value: ms})
	}
}

// Collection is the {total_count, data} shape used for incident
// sub-collections and audit replies.
type Collection struct {
	TotalCount json.Number `json:"total_count,omitempty"`
	Data       []Record    `json:"data"`
}

// ActionReply is returned by endpoint actions that start an asynchronous job.
type ActionReply struct {
	ActionID json.Number `json:"action_id"`
}

// pageBounds returns search_from/search_to for a zero-based page.
func pageBounds(page, limit, max int) (int, int) {
	if limit <= 0 || limit > max {
		limit = max
	}
	if page < 0 {
		page = 0
	}
	from := page * limit
	return from, from + limit
}
