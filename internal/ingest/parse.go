package ingest

import (
	"strings"

	"golang.org/x/net/html"
)

// FAQ is one structured entry extracted from a support page.
type FAQ struct {
	Section  string
	Question string
	Answer   string
}

// Text renders the FAQ as a retrievable chunk.
func (f FAQ) Text() string {
	return "Section: " + f.Section + "\nQuestion: " + f.Question + "\nAnswer: " + f.Answer
}

// ParseFAQs extracts structured FAQ entries from a support page laid
// out as support-list-section blocks. Pages without that structure
// yield no entries and fall back to generic text extraction.
func ParseFAQs(doc *html.Node) []FAQ {
	var faqs []FAQ
	for _, section := range findAll(doc, isSupportSection) {
		name := "Uncategorized"
		if h5 := findFirst(section, isElement("h5")); h5 != nil {
			if t := strings.TrimSpace(textOf(h5)); t != "" {
				name = t
			}
		}

		for _, item := range findAll(section, isElement("li")) {
			title := findFirst(item, isTitleLink)
			if title == nil {
				continue
			}
			question := strings.TrimSpace(strings.ReplaceAll(textOf(title), "?", ""))

			answer := ""
			if span := findFirst(item, isElement("span")); span != nil {
				var parts []string
				for _, block := range findAll(span, isAnyElement("p", "ul", "ol")) {
					if t := strings.TrimSpace(textOf(block)); t != "" {
						parts = append(parts, t)
					}
				}
				answer = strings.Join(parts, " ")
			}

			if question != "" && answer != "" {
				faqs = append(faqs, FAQ{Section: name, Question: question, Answer: answer})
			}
		}
	}
	return faqs
}

// ExtractText pulls readable text from an arbitrary page: block
// elements become lines, scripts and styles are dropped, and runs of
// blank lines collapse.
func ExtractText(doc *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "nav", "footer":
				return
			case "p", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "br", "div", "section", "article":
				b.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	lines := make([]string, 0, 64)
	prevEmpty := false
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
			prevEmpty = false
		} else if !prevEmpty && len(lines) > 0 {
			lines = append(lines, "")
			prevEmpty = true
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isSupportSection(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "support-list-section")
}

func isTitleLink(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "title")
}

func isElement(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

func isAnyElement(names ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, name := range names {
			if n.Data == name {
				return true
			}
		}
		return false
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// findFirst returns the first node in document order matching the
// predicate, or nil.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every node matching the predicate. Matched subtrees
// are not descended into again.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
