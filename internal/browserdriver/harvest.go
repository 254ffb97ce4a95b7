// File: internal/browserdriver/harvest.go
// Description: Interactive element harvesting. Primary path evaluates a script
// in the page for geometry-aware results; the fallback parses the raw HTML and
// yields elements without coordinates.
package browserdriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

// harvestScript collects visible interactive elements with viewport coordinates.
const harvestScript = `(() => {
	const out = [];
	const seen = new Set();
	const sel = 'a[href], button, input, select, textarea, [role="button"], [role="link"], [onclick]';
	for (const el of document.querySelectorAll(sel)) {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		const text = (el.innerText || el.value || el.getAttribute('aria-label') ||
			el.getAttribute('placeholder') || el.getAttribute('title') || '').trim();
		if (!text) continue;
		const key = text + '|' + el.tagName;
		if (seen.has(key)) continue;
		seen.add(key);
		out.push({
			text: text.slice(0, 120),
			coordinates: {x: r.x + r.width / 2, y: r.y + r.height / 2},
			about: el.tagName.toLowerCase(),
		});
	}
	return out;
})()`

// HarvestElements collects the interactive elements of the current page.
func (d *ChromeDriver) HarvestElements(ctx context.Context) ([]schemas.ParsedElement, error) {
	bctx, err := d.sessionCtx()
	if err != nil {
		return nil, err
	}

	var elements []schemas.ParsedElement
	if err := d.run(ctx, bctx, chromedp.Evaluate(harvestScript, &elements)); err == nil {
		return elements, nil
	} else {
		d.logger.Warn("Script harvest failed, falling back to HTML parse", zap.Error(err))
	}

	var raw string
	if err := d.run(ctx, bctx, chromedp.OuterHTML("html", &raw)); err != nil {
		return nil, fmt.Errorf("failed to harvest elements: %w", err)
	}
	return elementsFromHTML(strings.NewReader(raw)), nil
}

var interactiveTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
}

// elementsFromHTML extracts interactive elements from raw markup. The results
// carry no coordinates; downstream consumers that require geometry will drop
// them with a diagnostic.
func elementsFromHTML(r *strings.Reader) []schemas.ParsedElement {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}

	var out []schemas.ParsedElement
	seen := make(map[string]bool)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && interactiveTags[n.Data] {
			text := elementLabel(n)
			key := text + "|" + n.Data
			if text != "" && !seen[key] {
				seen[key] = true
				out = append(out, schemas.ParsedElement{
					Text:  text,
					About: n.Data,
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// elementLabel picks a human-readable label for an element, preferring its
// rendered text over attribute hints.
func elementLabel(n *html.Node) string {
	if text := strings.Join(strings.Fields(textContent(n)), " "); text != "" {
		return truncate(text, 120)
	}
	for _, attr := range []string{"aria-label", "placeholder", "title", "value", "alt", "name"} {
		if v := strings.TrimSpace(attrValue(n, attr)); v != "" {
			return truncate(v, 120)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
