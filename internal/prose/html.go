package prose

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var htmlTag = regexp.MustCompile(`(?i)<(p|div|br|table|tr|td|th|ul|ol|li|h[1-6]|span|b|strong|em|i|pre|code)\b[^>]*>`)

// LooksLikeHTML reports whether text contains HTML markup, as produced by
// pandas' to_html or by models that answer in HTML.
func LooksLikeHTML(text string) bool {
	return htmlTag.MatchString(text)
}

// StripHTML converts HTML to markdown-ish plain text: block elements end
// lines, headings become "#" lines, table cells are joined with " | " and
// list items become "- " bullets.
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var out strings.Builder
	newline := func() {
		str := out.String()
		if str != "" && !strings.HasSuffix(str, "\n") {
			out.WriteString("\n")
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if strings.TrimSpace(n.Data) == "" {
				return
			}
			out.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				out.WriteString("\n")
				return
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				newline()
				out.WriteString(strings.Repeat("#", headingLevel(n.DataAtom)) + " ")
			case atom.Li:
				newline()
				out.WriteString("- ")
			case atom.Td, atom.Th:
				if hasElementBefore(n) {
					out.WriteString(" | ")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			newline()
		}
	}
	walk(doc)

	lines := strings.Split(out.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func hasElementBefore(n *html.Node) bool {
	for p := n.PrevSibling; p != nil; p = p.PrevSibling {
		if p.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	}
	return 6
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Tr, atom.Table, atom.Ul, atom.Ol, atom.Li, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
