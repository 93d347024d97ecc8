// Package sql provides the statement checks applied to generated SQL before execution.
package sql

import (
	"fmt"
	"strings"
)

// ForbiddenKeywords are the write and DDL keywords the guardrail rejects,
// in the order they are checked.
var ForbiddenKeywords = []string{
	"DROP",
	"DELETE",
	"UPDATE",
	"INSERT",
	"CREATE",
	"ALTER",
	"TRUNCATE",
	"REPLACE",
}

// CheckForbiddenKeywords reports the first forbidden keyword that appears as a
// whole whitespace-delimited token of the upper-cased statement.
//
// Matching is lexical only: "updated_at" does not match UPDATE, an alias
// spelled "delete" does, and "DELETE;" does not.
func CheckForbiddenKeywords(statement string) (keyword string, blocked bool) {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToUpper(statement)) {
		tokens[tok] = struct{}{}
	}
	for _, kw := range ForbiddenKeywords {
		if _, ok := tokens[kw]; ok {
			return kw, true
		}
	}
	return "", false
}

// SafetyBlockMessage is the execution error recorded when the guardrail rejects a statement.
func SafetyBlockMessage(keyword string) string {
	return fmt.Sprintf("Safety block: SQL contains forbidden keyword '%s'. Only read-only SELECT statements are permitted.", keyword)
}
