package model

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageText extracts the readable text of an HTML document: scripts and
// styles are dropped and each phrase ends up on its own line.
func PageText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var chunks []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				chunks = append(chunks, phrase)
			}
		}
	}
	return strings.Join(chunks, "\n"), nil
}

// Identity is a cheap fingerprint of page text for logs.
func Identity(text string) int {
	sum := 0
	for _, r := range text {
		sum += int(r)
	}
	return sum
}

// Text returns the visible text of the live page.
func (p *Page) Text(ctx context.Context, rt *Runtime) (string, error) {
	html, err := rt.Browser.HTML(ctx)
	if err != nil {
		return "", err
	}
	return PageText(html)
}

// Contains reports whether the live page text includes s.
func (p *Page) Contains(ctx context.Context, rt *Runtime, s string) bool {
	text, err := p.Text(ctx, rt)
	return err == nil && strings.Contains(text, s)
}
