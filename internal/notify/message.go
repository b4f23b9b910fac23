package notify

import (
	"fmt"
	"html"
	"strings"

	"veloxbot/internal/camera"
)

const noChangeText = "No changes detected."

// mapsLink builds a Google Maps search link for a camera position, the same
// link style the subscribers get on the source page.
func mapsLink(r camera.Record) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%.6f%%2C%.6f", r.Lat(), r.Lon())
}

// addedText renders the per-entity notification for one new camera.
// Messages use Telegram HTML mode; labels come from scraped page text and
// are escaped.
func addedText(r camera.Record) string {
	label := html.EscapeString(r.Label)
	if !r.HasCoord() {
		return "New speed camera:\n- " + label
	}
	return fmt.Sprintf("New speed camera:\n- <a href=\"%s\">%s</a> (%.5f, %.5f)",
		mapsLink(r), label, r.Lat(), r.Lon())
}

// removedText renders the removal summary. Removed entities never get map
// enrichment; a single summary message covers all of them.
func removedText(removed []camera.Record) string {
	var b strings.Builder
	b.WriteString("Speed cameras removed:\n")
	for _, r := range removed {
		b.WriteString("- ")
		b.WriteString(html.EscapeString(r.Label))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
