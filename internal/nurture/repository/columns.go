package repository

import "strings"

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		name := strings.TrimSpace(p)
		parts[i] = " " + alias + "." + name
	}
	return strings.Join(parts, ",")
}
