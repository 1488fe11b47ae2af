// Package search parses Gmail-style query strings into a structured
// predicate, independent of any storage backend.
package search

import "strings"

// Field identifies what a clause matches against.
type Field string

const (
	// FieldText matches subject and body as a case-insensitive substring.
	FieldText Field = "text"
	// FieldFrom matches the sender address (exact when the value contains
	// '@', substring over address and display name otherwise).
	FieldFrom Field = "from"
	// FieldTo matches any To recipient.
	FieldTo Field = "to"
	// FieldSubject matches the subject as a substring.
	FieldSubject Field = "subject"
	// FieldHasAttachment matches messages with at least one attachment.
	// The clause value is empty.
	FieldHasAttachment Field = "has_attachment"
	// FieldIs matches a flag; the value is one of the isValues entries.
	FieldIs Field = "is"
	// FieldLabel matches messages carrying the named label.
	FieldLabel Field = "label"
)

// Clause is a single required (or, when negated, forbidden) condition.
// All clauses of a query combine with AND.
type Clause struct {
	Field   Field
	Value   string
	Negated bool
}

// Query is the parsed form of a search string.
type Query struct {
	Clauses []Clause
}

// IsEmpty reports whether the query carries no conditions at all.
func (q *Query) IsEmpty() bool {
	return len(q.Clauses) == 0
}

// isValues are the flag names accepted after "is:".
var isValues = map[string]bool{
	"starred":   true,
	"unread":    true,
	"read":      true,
	"important": true,
	"draft":     true,
}

// Parse converts a query string into a Query. Parsing never fails: tokens
// that look like operators but aren't recognized degrade to free-text
// terms, so a malformed query under- or over-matches instead of erroring.
//
// Grammar: whitespace-separated tokens, each either
//   - operator:value with operator in {from, to, subject, has, is, label}
//     (case-insensitive; values may be double-quoted to include spaces),
//   - a "quoted phrase" or bare word, matched against subject and body,
//   - any of the above prefixed with '-' to negate it.
func Parse(queryStr string) *Query {
	q := &Query{}

	for _, token := range tokenize(queryStr) {
		negated := false
		if strings.HasPrefix(token, "-") && len(token) > 1 {
			negated = true
			token = token[1:]
		}

		clause, ok := parseOperator(token)
		if !ok {
			clause = Clause{Field: FieldText, Value: unquote(token)}
		}
		if clause.Value == "" && clause.Field != FieldHasAttachment {
			continue
		}
		clause.Negated = negated
		q.Clauses = append(q.Clauses, clause)
	}

	return q
}

// parseOperator interprets a token as operator:value. It reports false for
// bare terms and for operator tokens it cannot make sense of, which the
// caller then treats as free text.
func parseOperator(token string) (Clause, bool) {
	if isQuotedPhrase(token) {
		return Clause{}, false
	}
	idx := strings.Index(token, ":")
	if idx <= 0 {
		return Clause{}, false
	}

	op := strings.ToLower(token[:idx])
	value := unquote(token[idx+1:])

	switch op {
	case "from":
		return Clause{Field: FieldFrom, Value: strings.ToLower(value)}, true
	case "to":
		return Clause{Field: FieldTo, Value: strings.ToLower(value)}, true
	case "subject":
		return Clause{Field: FieldSubject, Value: value}, true
	case "label":
		return Clause{Field: FieldLabel, Value: value}, true
	case "has":
		if low := strings.ToLower(value); low == "attachment" || low == "attachments" {
			return Clause{Field: FieldHasAttachment}, true
		}
	case "is":
		if low := strings.ToLower(value); isValues[low] {
			return Clause{Field: FieldIs, Value: low}, true
		}
	}

	return Clause{}, false
}

// unquote removes surrounding double quotes from a string if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// isQuotedPhrase returns true if the token is a double-quoted phrase.
func isQuotedPhrase(token string) bool {
	return len(token) > 2 && token[0] == '"' && token[len(token)-1] == '"'
}

// tokenize splits a query string on whitespace while keeping quoted
// phrases intact, including the operator:"quoted value" form.
func tokenize(queryStr string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	afterColon := false
	opQuoted := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, char := range queryStr {
		switch {
		case char == '"' && !inQuotes:
			inQuotes = true
			opQuoted = afterColon
			// A lone '-' is a pending negation of the phrase, keep it.
			if !afterColon && current.String() != "-" {
				flush()
			}
			current.WriteRune(char)
			afterColon = false
		case char == '"' && inQuotes:
			inQuotes = false
			current.WriteRune(char)
			if opQuoted {
				flush()
			}
			opQuoted = false
		case char == ' ' && !inQuotes:
			flush()
			afterColon = false
		default:
			current.WriteRune(char)
			afterColon = char == ':'
		}
	}
	flush()

	return tokens
}
