// Package diagram normalizes generated mermaid markup into a
// renderable form. It is a best-effort syntax sanitizer, not a grammar
// validator: markup that survives sanitization may still fail to
// render downstream.
package diagram

import (
	"regexp"
	"strings"
)

// diagramKinds are the recognized diagram-type declarations.
var diagramKinds = []string{
	"graph",
	"flowchart",
	"sequenceDiagram",
	"classDiagram",
	"stateDiagram",
}

var (
	fenceRe      = regexp.MustCompile("(?s)^```(?:mermaid)?\\s*(.*?)\\s*```$")
	arrowRe      = regexp.MustCompile(`[ \t]*-{1,3}>[ \t]*`)
	disallowedRe = regexp.MustCompile(`[^\w\s\[\]{}()<>:"'|-]`)
	spacesRe     = regexp.MustCompile(`[ \t]+`)
)

// DefaultDeclaration opens a top-down flowchart when the markup carries
// no recognized declaration of its own.
const DefaultDeclaration = "graph TD"

// Repair normalizes raw diagram markup. It is total and idempotent: it
// never fails, and empty or whitespace-only input yields an empty
// string.
func Repair(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	// Strip a fenced code-block wrapper.
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	// Statement separators become line breaks, arrows get canonical
	// spacing.
	text = strings.ReplaceAll(text, ";", "\n")
	text = arrowRe.ReplaceAllString(text, " --> ")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !isDeclaration(line) {
			line = disallowedRe.ReplaceAllString(line, "")
		}
		line = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		out = append(out, line)
	}

	if len(out) == 0 {
		return ""
	}

	if !isDeclaration(out[0]) {
		out = append([]string{DefaultDeclaration}, out...)
	}

	return strings.Join(out, "\n")
}

func isDeclaration(line string) bool {
	for _, kind := range diagramKinds {
		if strings.HasPrefix(line, kind) {
			return true
		}
	}
	return false
}
