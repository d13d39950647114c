package domain

import "time"

// MainSectionKey holds the full knowledge-base payload. Every other section
// is a projection of one of its top-level keys.
const MainSectionKey = "main"

// ConfigSection is a named reference-data document.
type ConfigSection struct {
	SectionKey string
	Payload    any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
