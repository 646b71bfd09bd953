package blob

import (
	"strings"
	"time"
)

// EntityDocument renders the presentation header used for entity blobs.
// The header is never parsed back; readers treat the file as opaque text.
func EntityDocument(name, entityType, summary string, created time.Time, body string) string {
	var b strings.Builder
	b.WriteString("# " + name + "\n\n")
	b.WriteString("**Type:** " + entityType + "\n")
	b.WriteString("**Created:** " + created.Format(time.RFC3339) + "\n\n")
	if summary != "" {
		b.WriteString("**Summary:** " + summary + "\n\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}

// ChatDocument renders the header used for chat transcript blobs.
func ChatDocument(title, url string, date time.Time, body string) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	b.WriteString("**URL:** " + url + "\n\n")
	b.WriteString("**Date:** " + date.Format(time.RFC3339) + "\n\n")
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}
