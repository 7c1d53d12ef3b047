package crm

import "strings"

var (
	literalEscaper = strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
		`"`, `\"`,
	)
	likeEscaper = strings.NewReplacer(`%`, `\%`, `_`, `\_`)
)

// Quote renders s as a query string literal.
func Quote(s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}

// Contains renders a LIKE pattern matching s anywhere, with wildcards in s escaped.
func Contains(s string) string {
	return "'%" + likeEscaper.Replace(literalEscaper.Replace(s)) + "%'"
}

// QuoteList renders ids as a parenthesized IN list.
func QuoteList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = Quote(id)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
