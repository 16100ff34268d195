// CLAUDE:SUMMARY Flat SVG status badges (label | value) with bluemonday-sanitized text and the coverage color scale.
// Package badge renders shields-style flat SVG badges.
package badge

import (
	"fmt"
	"html"
	"regexp"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Colors used by CoverageColor.
const (
	BrightGreen = "#4c1"
	Green       = "#97ca00"
	YellowGreen = "#a4a61d"
	Yellow      = "#dfb317"
	Orange      = "#fe7d37"
	Red         = "#e05d44"
	Grey        = "#9f9f9f"
)

var (
	policy     = bluemonday.StrictPolicy()
	validColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[a-z]{3,20})$`)
)

// CoverageColor maps a coverage percent to a badge color. known=false means
// no measurement exists and yields grey.
func CoverageColor(percent float64, known bool) string {
	switch {
	case !known:
		return Grey
	case percent >= 90:
		return BrightGreen
	case percent >= 75:
		return Green
	case percent >= 60:
		return YellowGreen
	case percent >= 40:
		return Yellow
	case percent >= 20:
		return Orange
	default:
		return Red
	}
}

const (
	charWidth = 7
	padding   = 10
	height    = 20
)

// Render returns the SVG document for a badge. Markup in label or value is
// stripped; an unrecognised color falls back to grey.
func Render(label, value, color string) []byte {
	l := policy.Sanitize(label)
	v := policy.Sanitize(value)
	if !validColor.MatchString(color) {
		color = Grey
	}

	lw := textWidth(l)
	vw := textWidth(v)
	total := lw + vw

	return []byte(fmt.Sprintf(svgTemplate,
		total, height, l, v,
		l, v,
		total, height,
		lw, height,
		lw, vw, height, color,
		total, height,
		lw*5, l,
		lw*5, l,
		(lw+vw/2)*10, v,
		(lw+vw/2)*10, v,
	))
}

// textWidth approximates the rendered width of sanitized text.
func textWidth(sanitized string) int {
	return utf8.RuneCountInString(html.UnescapeString(sanitized))*charWidth + padding
}

const svgTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" role="img" aria-label="%s: %s">` +
	`<title>%s: %s</title>` +
	`<linearGradient id="s" x2="0" y2="100%%"><stop offset="0" stop-color="#bbb" stop-opacity=".1"/><stop offset="1" stop-opacity=".1"/></linearGradient>` +
	`<clipPath id="r"><rect width="%d" height="%d" rx="3" fill="#fff"/></clipPath>` +
	`<g clip-path="url(#r)"><rect width="%d" height="%d" fill="#555"/><rect x="%d" width="%d" height="%d" fill="%s"/><rect width="%d" height="%d" fill="url(#s)"/></g>` +
	`<g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,DejaVu Sans,sans-serif" font-size="110">` +
	`<text x="%d" y="150" fill="#010101" fill-opacity=".3" transform="scale(.1)">%s</text>` +
	`<text x="%d" y="140" transform="scale(.1)">%s</text>` +
	`<text x="%d" y="150" fill="#010101" fill-opacity=".3" transform="scale(.1)">%s</text>` +
	`<text x="%d" y="140" transform="scale(.1)">%s</text>` +
	`</g></svg>`
