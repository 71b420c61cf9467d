package section

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	anyRefRe = regexp.MustCompile(`\[\^([A-Za-z0-9_-]+)\]`)
	anyDefRe = regexp.MustCompile(`^\[\^([A-Za-z0-9_-]+)\]:\s*(.*)$`)
)

// Renumber rewrites footnote markers to sequential integers assigned in
// order of first inline appearance, accepting both numeric and alphanumeric
// markers. Inline references are rewritten in place; the definition block is
// rebuilt at the end of the document sorted by new number. A reference with
// no matching definition keeps its new number but emits no definition line,
// so renumbering never invents content. Definitions that are no longer
// referenced anywhere are dropped.
func Renumber(text string) string {
	lines := strings.Split(text, "\n")

	// First-appearance order over inline references only.
	assign := map[string]int{}
	next := 1
	for _, line := range lines {
		if anyDefRe.MatchString(line) {
			continue
		}
		for _, m := range anyRefRe.FindAllStringSubmatch(line, -1) {
			if _, ok := assign[m[1]]; !ok {
				assign[m[1]] = next
				next++
			}
		}
	}

	// Definition text per marker, first definition wins on duplicates.
	// Indented continuation lines travel with their definition.
	defText := map[string]string{}
	var kept []string
	for i := 0; i < len(lines); i++ {
		m := anyDefRe.FindStringSubmatch(lines[i])
		if m == nil {
			kept = append(kept, lines[i])
			continue
		}
		var b strings.Builder
		b.WriteString(m[2])
		for i+1 < len(lines) && isContinuation(lines[i+1]) {
			i++
			b.WriteString("\n")
			b.WriteString(lines[i])
		}
		if _, ok := defText[m[1]]; !ok {
			defText[m[1]] = b.String()
		}
	}

	// Rewrite inline references on the surviving lines.
	body := strings.Join(kept, "\n")
	body = anyRefRe.ReplaceAllStringFunc(body, func(ref string) string {
		marker := anyRefRe.FindStringSubmatch(ref)[1]
		n, ok := assign[marker]
		if !ok {
			return ref
		}
		return fmt.Sprintf("[^%d]", n)
	})

	// Rebuild the definition block sorted by new number.
	type numbered struct {
		n    int
		text string
	}
	var defs []numbered
	for marker, n := range assign {
		if text, ok := defText[marker]; ok {
			defs = append(defs, numbered{n: n, text: text})
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].n < defs[j].n })

	out := strings.TrimRight(body, "\n")
	if len(defs) > 0 {
		var b strings.Builder
		b.WriteString(out)
		b.WriteString("\n\n")
		for i, d := range defs {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fmt.Sprintf("[^%d]: %s", d.n, d.text))
		}
		out = b.String()
	}
	out = tripleNewlineRe.ReplaceAllString(out, "\n\n")
	return strings.TrimRight(out, "\n") + "\n"
}

func isContinuation(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}
