package probe

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// assetRels are the link relations that make a browser fetch the target.
var assetRels = map[string]bool{
	"stylesheet":    true,
	"icon":          true,
	"preload":       true,
	"modulepreload": true,
	"manifest":      true,
}

// ExtractAssets returns the same-origin URLs a browser would load while
// rendering doc: script[src], img[src] and link[href] with a fetching rel.
//
// Relative references are resolved against base. Duplicates are dropped and
// document order is kept.
func ExtractAssets(doc *html.Node, base *url.URL) []string {
	var result []string
	if doc == nil || base == nil {
		return result
	}
	seen := make(map[string]bool)

	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "#") {
			return
		}
		u, err := base.Parse(ref)
		if err != nil || u.Host != base.Host || u.Scheme != base.Scheme {
			return
		}
		u.Fragment = ""
		if s := u.String(); !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "img":
				add(attr(n, "src"))
			case "link":
				for _, rel := range strings.Fields(strings.ToLower(attr(n, "rel"))) {
					if assetRels[rel] {
						add(attr(n, "href"))
						break
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return result
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
