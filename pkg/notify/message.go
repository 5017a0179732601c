package notify

import (
	"strings"
)

// timestampLayout is the human-readable timestamp used in notification
// bodies. Event timestamps arrive already converted to the configured
// notification timezone.
const timestampLayout = "2006-01-02 15:04"

// FormatBody renders the plain-text notification body for an event. All
// adapters share the same body so a reader sees identical text regardless
// of channel; element text is capped at SummaryLimit runes.
func FormatBody(e *Event) string {
	var b strings.Builder

	switch e.Type {
	case EventChanged:
		b.WriteString("⚠️ Element changed!\n\n")
		b.WriteString("Time: " + e.Timestamp.Format(timestampLayout) + "\n")
		if e.ExpectedText != "" {
			b.WriteString("Expected: " + e.ExpectedText + "\n")
			b.WriteString("Found: " + orPlaceholder(e.Summary(SummaryLimit), "not found"))
		} else {
			b.WriteString("New text: " + orPlaceholder(e.Summary(SummaryLimit), "not found"))
		}
	case EventMissing:
		b.WriteString("⚠️ Element missing!\n\n")
		b.WriteString("Time: " + e.Timestamp.Format(timestampLayout) + "\n")
		if e.ExpectedText != "" {
			b.WriteString("Expected element with text: " + e.ExpectedText + "\n")
		}
		b.WriteString("Element not found on the page")
	case EventRecovered:
		b.WriteString("✅ Element found again!\n\n")
		b.WriteString("Time: " + e.Timestamp.Format(timestampLayout) + "\n")
		b.WriteString("Text: " + orPlaceholder(e.Summary(SummaryLimit), "found"))
	case EventHeartbeat:
		b.WriteString("✅ Element in place!\n\n")
		b.WriteString("Time: " + e.Timestamp.Format(timestampLayout) + "\n")
		b.WriteString("Text: " + orPlaceholder(e.Summary(SummaryLimit), "found") + "\n")
		b.WriteString("All good.")
	default:
		b.WriteString("Element event: " + string(e.Type) + "\n\n")
		b.WriteString("Time: " + e.Timestamp.Format(timestampLayout) + "\n")
		b.WriteString("Text: " + e.Summary(SummaryLimit))
	}

	return b.String()
}

func orPlaceholder(text, placeholder string) string {
	if strings.TrimSpace(text) == "" {
		return placeholder
	}
	return text
}
