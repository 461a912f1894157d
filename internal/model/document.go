package model

import "fmt"

// Document is a single source document loaded for analysis. Content is plain
// text; extracting text from binary containers is the loader's concern.
type Document struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Path      string            `json:"path"`
	SizeBytes int64             `json:"size_bytes"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (d Document) String() string {
	return fmt.Sprintf("Document(%s, %d chars)", d.Name, len(d.Content))
}

// Chunk is one bounded-size segment of a document, possibly overlapping its
// neighbors. Index is the ordinal position within the source document.
type Chunk struct {
	Source string `json:"source"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}
