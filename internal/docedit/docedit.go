// Package docedit manipulates document-editor HTML fragments.
//
// Document content is stored as an HTML fragment (the editor body).
// Appends go through a parse/serialize round trip, so malformed input
// is normalized instead of grown.
package docedit

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AppendText appends literal text to the end of the fragment.
func AppendText(fragment, text string) string {
	return appendMarkup(fragment, html.EscapeString(text))
}

// AppendLineBreak appends a line break to the fragment.
func AppendLineBreak(fragment string) string {
	return appendMarkup(fragment, "<br>")
}

// AppendImage appends one image reference to the fragment. src is
// expected to be a data URL.
func AppendImage(fragment, src string) string {
	return appendMarkup(fragment, fmt.Sprintf(`<img src="%s" alt="">`, html.EscapeString(src)))
}

// appendMarkup parses the fragment, appends markup to its body, and
// re-serializes.
func appendMarkup(fragment, markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment + markup
	}
	body := doc.Find("body")
	body.AppendHtml(markup)
	out, err := body.Html()
	if err != nil {
		return fragment + markup
	}
	return out
}

// CountImages returns the number of image references in the fragment.
func CountImages(fragment string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return 0
	}
	return doc.Find("img").Length()
}

// PlainText extracts the fragment's visible text, used for listings and
// previews.
func PlainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}
