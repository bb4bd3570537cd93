// Package prose prepares answer text for display.
package prose

import (
	"bufio"
	"regexp"
	"strings"
)

// chartMarker matches inline chart images left in answer text by the service.
var chartMarker = regexp.MustCompile(`(?s)!\[CHART_GENERATED\]\((data:image/.*?;base64,.*?)\)`)

// Answer is normalized answer text.
type Answer struct {
	Text    string
	Images  []string
	Outline []Heading
}

// Normalize lifts chart markers out of text, converts HTML fragments to plain
// text and collects the heading outline.
func Normalize(text string) Answer {
	clean, images := LiftCharts(text)
	if LooksLikeHTML(clean) {
		clean = StripHTML(clean)
	}
	clean = strings.TrimSpace(clean)
	return Answer{
		Text:    clean,
		Images:  images,
		Outline: Outline(clean),
	}
}

// LiftCharts removes inline chart image markers and returns their data URIs
// in order of appearance.
func LiftCharts(text string) (string, []string) {
	var refs []string
	clean := chartMarker.ReplaceAllStringFunc(text, func(m string) string {
		refs = append(refs, chartMarker.FindStringSubmatch(m)[1])
		return ""
	})
	return clean, refs
}

// Heading is one entry of the answer outline.
type Heading struct {
	Title string
	Level int
}

// headerRegex matches markdown headers (# to ######)
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Outline lists the markdown headings of text, skipping fenced code.
func Outline(text string) []Heading {
	var out []Heading
	inFence := false
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), len(text)+1)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if match := headerRegex.FindStringSubmatch(line); match != nil {
			out = append(out, Heading{
				Title: strings.TrimSpace(match[2]),
				Level: len(match[1]) - 1, // h1 = level 0, h2 = level 1, etc.
			})
		}
	}
	return out
}
