package extract

import "strings"

type fencedBlock struct {
	Tag        string
	Body       string
	Terminated bool
}

// scanFences walks the text line by line and returns every fenced code block
// in order of appearance. The tag is lowercased. A fence left open at the end
// of the text is returned with Terminated=false and its body running to EOF.
func scanFences(text string) []fencedBlock {
	lines := strings.Split(text, "\n")
	blocks := make([]fencedBlock, 0)

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "```") {
			continue
		}
		tag := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "```")))

		body := make([]string, 0)
		terminated := false
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
				terminated = true
				break
			}
			body = append(body, lines[j])
		}
		blocks = append(blocks, fencedBlock{
			Tag:        tag,
			Body:       strings.TrimSpace(strings.Join(body, "\n")),
			Terminated: terminated,
		})
		i = j
	}
	return blocks
}
