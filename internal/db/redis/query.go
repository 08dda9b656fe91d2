package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// matchAll is the query string selecting every document of an index.
const matchAll = "*"

// buildQuery combines the pre-filter and the optional text clause.
func buildQuery(expr filter.Expression, text string, field scope.Scope) string {
	parts := make([]string, 0, 2)
	if f := buildFilter(expr); f != "" {
		parts = append(parts, f)
	}
	if text != "" {
		parts = append(parts, buildTextClause(text, field))
	}
	if len(parts) == 0 {
		return matchAll
	}
	return strings.Join(parts, " ")
}

// buildFilter translates filter.Expression into an FT.SEARCH pre-filter query string.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	var parts []string

	for _, cond := range expr.Must() {
		parts = append(parts, buildCondition(cond))
	}

	if shouldParts := buildShouldGroup(expr.Should()); shouldParts != "" {
		parts = append(parts, shouldParts)
	}

	for _, cond := range expr.MustNot() {
		parts = append(parts, negate(buildCondition(cond)))
	}

	return strings.Join(parts, " ")
}

func buildCondition(cond filter.Condition) string {
	switch cond.Kind() {
	case filter.KindTerms:
		tags := make([]string, len(cond.Terms()))
		for i, t := range cond.Terms() {
			tags[i] = db.TagValue(cond.Scope(), t)
		}
		return buildTagFilter(db.FieldKey(cond.Scope()), tags)
	case filter.KindRange:
		return buildNumericFilter(db.FieldKey(cond.Scope()), *cond.Range())
	case filter.KindExists:
		key, tag := db.ExistsKey(cond.Scope())
		if tag != "" {
			return buildTagFilter(key, []string{tag})
		}
		return "-ismissing(@" + escapeField(key) + ")"
	default:
		return ""
	}
}

// negate inverts a clause; an already negated clause loses its sign.
func negate(clause string) string {
	if strings.HasPrefix(clause, "-") {
		return clause[1:]
	}
	return "-" + clause
}

func buildShouldGroup(conditions []filter.Condition) string {
	if len(conditions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		c := buildCondition(cond)
		if strings.HasPrefix(c, "-") {
			c = "(" + c + ")"
		}
		parts = append(parts, c)
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

func buildTagFilter(key string, values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", escapeField(key), strings.Join(escaped, " | "))
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GTE() != nil {
		minBound = formatFloat(*r.GTE())
	}
	if r.LTE() != nil {
		maxBound = formatFloat(*r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", escapeField(key), minBound, maxBound)
}

// buildTextClause matches every query term in one field, or in all TEXT fields when field is zero.
func buildTextClause(text string, field scope.Scope) string {
	escaped := escapeQuery(text)
	if field.IsZero() {
		return "(" + escaped + ")"
	}
	return fmt.Sprintf("@%s:(%s)", escapeField(db.FieldKey(field)), escaped)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// --- Query helpers ---

var fieldEscaper = strings.NewReplacer(
	".", "\\.",
	"-", "\\-",
	":", "\\:",
)

func escapeField(key string) string {
	return fieldEscaper.Replace(key)
}

var tagEscaper = strings.NewReplacer(
	"\\", "\\\\",
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
)
