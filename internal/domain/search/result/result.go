// Package result holds search outputs: scored record hits and progress counts.
package result

// Item is a single search hit.
type Item struct {
	recordID string
	score    *float64
}

// New creates a scored hit.
func New(recordID string, score float64) Item {
	return Item{recordID: recordID, score: &score}
}

// Unscored creates a hit from a plain listing.
func Unscored(recordID string) Item {
	return Item{recordID: recordID}
}

// RecordID returns the record identifier.
func (i Item) RecordID() string { return i.recordID }

// Score returns the relevance or similarity score; nil for plain listings.
func (i Item) Score() *float64 { return i.score }

// Page is an ordered page of hits plus the uncapped match count.
type Page struct {
	Items []Item
	Total int
}

// RecordIDs returns the hit ids in order.
func (p Page) RecordIDs() []string {
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.recordID
	}
	return ids
}

// Progress is the dataset-wide completion summary.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// UserProgress counts one user's responses by status.
// Pending counts records the user has not responded to.
type UserProgress struct {
	Total     int `json:"total"`
	Submitted int `json:"submitted"`
	Discarded int `json:"discarded"`
	Draft     int `json:"draft"`
	Pending   int `json:"pending"`
}
