package repair

import (
	"regexp"
	"strings"

	"github.com/hyperifyio/citeguard/internal/footnote"
)

var multiBlankRe = regexp.MustCompile(`\n{3,}`)

// CleanupOrphanedDefinitions removes definition lines whose footnote number
// no longer appears inline anywhere in the document, then collapses runs of
// blank lines left behind. Returns the cleaned document and the numbers of
// the removed definitions.
func CleanupOrphanedDefinitions(doc string) (string, []int) {
	inline := map[int]bool{}
	for _, n := range footnote.InlineNumbers(doc) {
		inline[n] = true
	}

	var removed []int
	lines := strings.Split(doc, "\n")
	kept := lines[:0]
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		defs := footnote.ParseDefinitions(line)
		if len(defs) == 1 && !inline[defs[0].Number] {
			removed = append(removed, defs[0].Number)
			// Drop indented continuation lines belonging to the
			// removed definition.
			for i+1 < len(lines) && isIndentedContinuation(lines[i+1]) {
				i++
			}
			continue
		}
		kept = append(kept, line)
	}
	if len(removed) == 0 {
		return doc, nil
	}
	out := strings.Join(kept, "\n")
	out = multiBlankRe.ReplaceAllString(out, "\n\n")
	return out, removed
}

func isIndentedContinuation(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")
}
