package footnote

import (
	"strings"
	"testing"
)

func TestClaimContextWindowIsBounded(t *testing.T) {
	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, "filler line")
	}
	lines[20] = "The bridge opened in 1932[^3]."
	body := strings.Join(lines, "\n")

	ctx, refLine := ClaimContext(body, 3)
	if refLine != 21 {
		t.Fatalf("expected ref line 21, got %d", refLine)
	}
	got := strings.Split(ctx, "\n")
	if len(got) != 21 {
		t.Fatalf("expected 21-line window, got %d", len(got))
	}
	if got[10] != lines[20] {
		t.Fatalf("reference line not centered in window")
	}
}

func TestClaimContextSkipsDefinitionLines(t *testing.T) {
	body := "[^5]: https://example.org/src\n\nActual claim[^5] here.\n"
	ctx, refLine := ClaimContext(body, 5)
	if refLine != 3 {
		t.Fatalf("expected inline ref on line 3, got %d", refLine)
	}
	if !strings.Contains(ctx, "Actual claim") {
		t.Fatalf("context missing claim: %q", ctx)
	}
}

func TestClaimContextListItemExcludesSiblings(t *testing.T) {
	body := strings.Join([]string{
		"Intro paragraph.",
		"",
		"- First unrelated item[^1]",
		"- Second item with claim[^2]",
		"  continuation of second item",
		"- Third unrelated item[^3]",
		"",
		"[^2]: https://example.org",
	}, "\n")

	ctx, _ := ClaimContext(body, 2)
	if !strings.Contains(ctx, "Second item with claim") {
		t.Fatalf("context missing the owning item: %q", ctx)
	}
	if !strings.Contains(ctx, "continuation of second item") {
		t.Fatalf("continuation line must be included: %q", ctx)
	}
	if strings.Contains(ctx, "First unrelated") || strings.Contains(ctx, "Third unrelated") {
		t.Fatalf("sibling items bled into context: %q", ctx)
	}
}

func TestClaimContextMissingFootnote(t *testing.T) {
	ctx, refLine := ClaimContext("nothing here", 9)
	if ctx != "" || refLine != 0 {
		t.Fatalf("expected empty context for missing footnote, got %q line %d", ctx, refLine)
	}
}

func TestSectionContextBoundedByHeadings(t *testing.T) {
	body := strings.Join([]string{
		"## Early life",
		"Born in 1901[^1].",
		"",
		"## Career",
		"Joined the observatory[^2] in 1925.",
		"More career text.",
		"",
		"## Legacy",
		"Legacy text.",
		"",
		"[^1]: https://a.example",
		"[^2]: https://b.example",
	}, "\n")

	sec, ok := SectionContext(body, 2)
	if !ok {
		t.Fatalf("expected a section")
	}
	if !strings.HasPrefix(sec, "## Career") {
		t.Fatalf("section must start at its heading: %q", sec)
	}
	if strings.Contains(sec, "Legacy") || strings.Contains(sec, "Early life") {
		t.Fatalf("section crossed heading boundary: %q", sec)
	}
}

func TestSectionContextStopsAtDefinitionBlock(t *testing.T) {
	body := strings.Join([]string{
		"## Only section",
		"A claim[^1].",
		"",
		"[^1]: https://a.example",
	}, "\n")
	sec, ok := SectionContext(body, 1)
	if !ok {
		t.Fatalf("expected a section")
	}
	if strings.Contains(sec, "[^1]: https://a.example") {
		t.Fatalf("definition block must not be part of the section: %q", sec)
	}
}

func TestSectionContextIgnoresHeadingInsideFence(t *testing.T) {
	body := strings.Join([]string{
		"## Usage",
		"```",
		"## not a heading",
		"```",
		"Call the API[^4] once per page.",
		"",
		"## Next",
		"other",
		"",
		"[^4]: https://a.example",
	}, "\n")
	sec, ok := SectionContext(body, 4)
	if !ok {
		t.Fatalf("expected a section")
	}
	if !strings.Contains(sec, "Call the API") {
		t.Fatalf("section missing claim line: %q", sec)
	}
	if strings.Contains(sec, "## Next") {
		t.Fatalf("section crossed following heading: %q", sec)
	}
}
