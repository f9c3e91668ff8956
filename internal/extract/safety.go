package extract

import "strings"

// Keywords that reject a candidate outright. This is a coarse substring gate,
// not a SQL parser: a column named created_at will trip CREATE, and an
// obfuscated mutation may slip a prefix check. The model is treated as
// untrusted, so false rejections are preferred over false acceptances.
var mutationKeywords = []string{
	"DROP",
	"DELETE",
	"TRUNCATE",
	"ALTER",
	"CREATE",
	"INSERT",
	"UPDATE",
	"EXEC",
	"EXECUTE",
}

// IsSafe reports whether a candidate statement is allowed to reach a data
// source: no mutation keyword anywhere, and a SELECT or WITH prefix.
func IsSafe(candidate string) bool {
	upper := strings.ToUpper(candidate)
	for _, keyword := range mutationKeywords {
		if strings.Contains(upper, keyword) {
			return false
		}
	}
	trimmed := strings.TrimSpace(upper)
	return strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH")
}
