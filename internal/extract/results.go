package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// PageResult is one search hit parsed from an HTML results page
type PageResult struct {
	Title   string
	Snippet string
	URL     string
}

// ParseResultsPage extracts search hits from an HTML results page.
// It understands the result__a/result__snippet markup of the HTML search
// frontend and falls back to outbound anchors for anything else.
func ParseResultsPage(htmlContent string, pageURL string, limit int) ([]PageResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	results := parseStructured(doc, baseURL)
	if len(results) == 0 {
		results = parseAnchors(doc, baseURL)
	}

	results = dedupeResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// parseStructured walks result blocks (title anchor followed by snippet)
func parseStructured(doc *html.Node, base *url.URL) []PageResult {
	var results []PageResult
	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				href := resolveURL(base, unwrapRedirect(attr(n, "href")))
				if href != "" {
					results = append(results, PageResult{
						Title: strings.TrimSpace(textContent(n)),
						URL:   href,
					})
				}
				return
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = strings.TrimSpace(textContent(n))
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return results
}

// parseAnchors collects outbound links with their anchor text
func parseAnchors(doc *html.Node, base *url.URL) []PageResult {
	var results []PageResult
	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := resolveURL(base, unwrapRedirect(attr(n, "href")))
			if href != "" {
				parsed, _ := url.Parse(href)
				text := strings.TrimSpace(textContent(n))
				if parsed != nil && parsed.Host != base.Host && text != "" {
					results = append(results, PageResult{Title: text, URL: href})
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return results
}

// unwrapRedirect decodes tracking redirects of the form /l/?uddg=<target>
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if !strings.Contains(href, "uddg=") {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// resolveURL resolves a relative URL against a base URL
func resolveURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)

	// Only keep http/https URLs
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

func textContent(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if buf.Len() > 0 {
					buf.WriteString(" ")
				}
				buf.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// dedupeResults removes duplicate URLs, keeping the first occurrence
func dedupeResults(results []PageResult) []PageResult {
	seen := make(map[string]bool)
	var unique []PageResult

	for _, r := range results {
		if !seen[r.URL] {
			seen[r.URL] = true
			unique = append(unique, r)
		}
	}

	return unique
}
