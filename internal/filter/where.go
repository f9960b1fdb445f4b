package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Entry is the flat view of one captured event that where clauses match
// against.
type Entry struct {
	Level  string
	Source string
	Text   string
}

// WhereClause represents a parsed --where condition
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	regex    *regexp.Regexp // Compiled regex for ~ and !~ operators
}

// ParseWhereClause parses a where clause like "level=error" or "text~timeout"
// Supported operators: =, !=, ~, !~, ^, $
func ParseWhereClause(clause string) (*WhereClause, error) {
	// Try operators in order of length (longest first to avoid partial matches)
	operators := []string{"!~", "!=", "~", "=", "^", "$"}

	for _, op := range operators {
		idx := strings.Index(clause, op)
		if idx > 0 {
			field := strings.TrimSpace(clause[:idx])
			value := strings.TrimSpace(clause[idx+len(op):])

			if field == "" || value == "" {
				return nil, fmt.Errorf("invalid where clause: %s", clause)
			}

			wc := &WhereClause{
				Field:    field,
				Operator: op,
				Value:    value,
			}

			// Pre-compile regex for ~ and !~ operators
			if op == "~" || op == "!~" {
				re, err := regexp.Compile(value)
				if err != nil {
					return nil, fmt.Errorf("invalid regex in where clause '%s': %w", clause, err)
				}
				wc.regex = re
			}

			return wc, nil
		}
	}

	return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, ~, !~, ^, $)", clause)
}

// Match checks if an entry matches this where clause
func (wc *WhereClause) Match(e Entry) bool {
	fieldValue := wc.getFieldValue(e)

	switch wc.Operator {
	case "=":
		return fieldValue == wc.Value
	case "!=":
		return fieldValue != wc.Value
	case "~": // Contains (regex)
		if wc.regex != nil {
			return wc.regex.MatchString(fieldValue)
		}
		return strings.Contains(fieldValue, wc.Value)
	case "!~": // Not contains (regex)
		if wc.regex != nil {
			return !wc.regex.MatchString(fieldValue)
		}
		return !strings.Contains(fieldValue, wc.Value)
	case "^": // Starts with
		return strings.HasPrefix(fieldValue, wc.Value)
	case "$": // Ends with
		return strings.HasSuffix(fieldValue, wc.Value)
	}
	return false
}

func (wc *WhereClause) getFieldValue(e Entry) string {
	switch wc.Field {
	case "level":
		return e.Level
	case "source":
		return e.Source
	case "text", "message":
		return e.Text
	}
	return ""
}

// MatchAll reports whether an entry passes every clause.
func MatchAll(clauses []*WhereClause, e Entry) bool {
	for _, wc := range clauses {
		if !wc.Match(e) {
			return false
		}
	}
	return true
}
