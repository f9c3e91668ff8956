package extract

import "strings"

// A statementStrategy pulls zero or more candidate statements from raw model
// text. Strategies are pure and independently testable; Statements tries them
// in priority order and the first one to produce candidates wins.
type statementStrategy func(text string) []string

var statementStrategies = []statementStrategy{
	fencedStatements,
	looseStatements,
}

// Statements extracts every safe SQL candidate from the model's raw reply, in
// order of appearance. Unsafe candidates are discarded silently; an empty
// result is a normal outcome, not an error.
func Statements(text string) []string {
	var candidates []string
	for _, strategy := range statementStrategies {
		if candidates = strategy(text); len(candidates) > 0 {
			break
		}
	}

	safe := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if IsSafe(candidate) {
			safe = append(safe, candidate)
		}
	}
	return safe
}

// fencedStatements collects fenced blocks tagged as sql, plus untagged blocks
// whose first line reads like a query.
func fencedStatements(text string) []string {
	candidates := make([]string, 0)
	for _, block := range scanFences(text) {
		if !block.Terminated || block.Body == "" {
			continue
		}
		switch {
		case block.Tag == "sql":
			candidates = append(candidates, block.Body)
		case block.Tag == "":
			firstLine := strings.ToUpper(strings.TrimSpace(strings.SplitN(block.Body, "\n", 2)[0]))
			if strings.HasPrefix(firstLine, "SELECT") || strings.HasPrefix(firstLine, "WITH") {
				candidates = append(candidates, block.Body)
			}
		}
	}
	return candidates
}

var prosePrefixes = []string{"This ", "The ", "I ", "Here"}

// looseStatements is the fallback for replies that inline a query without a
// fence: capture from the first SELECT/WITH line until a blank or prose line,
// yielding at most one candidate.
func looseStatements(text string) []string {
	var captured []string
	capturing := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !capturing {
			upper := strings.ToUpper(trimmed)
			if strings.HasPrefix(upper, "SELECT ") || strings.HasPrefix(upper, "WITH ") {
				capturing = true
				captured = append(captured, trimmed)
			}
			continue
		}
		if trimmed == "" || looksLikeProse(trimmed) {
			break
		}
		captured = append(captured, trimmed)
	}

	if len(captured) == 0 {
		return nil
	}
	return []string{strings.Join(captured, "\n")}
}

func looksLikeProse(line string) bool {
	for _, prefix := range prosePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
