package livebind

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton)
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &html.Minifier{
			KeepDefaultAttrVals: true,
			KeepEndTags:         true,
			KeepQuotes:          true,
		})
	})
	return minifier
}

// minifyHTML removes unnecessary whitespace from rendered markup while
// preserving content
func minifyHTML(markup string) string {
	if strings.Contains(markup, "<") {
		minified, err := getMinifier().String("text/html", markup)
		if err != nil {
			return markup
		}
		return minified
	}
	return normalizeWhitespace(markup)
}

// normalizeWhitespace trims text and collapses internal whitespace runs
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
