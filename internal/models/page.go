package models

// PageVersion is the version block of a Confluence page, used as the
// optimistic-concurrency token on updates.
type PageVersion struct {
	Number    int    `json:"number"`
	Author    string `json:"author,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Page is a Confluence page with its body in the canonical storage
// representation.
type Page struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	URL     string      `json:"url,omitempty"`
	Body    string      `json:"body"`
	Version PageVersion `json:"version"`
}
