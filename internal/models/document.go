package models

import "time"

// ChunkMetadata carries positional and structural metadata for one chunk
type ChunkMetadata struct {
	Start     int      `json:"start"` // Offset in the logical reconstructed document
	End       int      `json:"end"`
	CharCount int      `json:"char_count"`
	Headings  []string `json:"headings,omitempty"` // Section headings in scope at this point
}

// DocumentChunk is a bounded slice of a parsed filing's text. Chunks are
// produced in strictly increasing ID order matching document order.
type DocumentChunk struct {
	ID       int           `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// FilingDocument is the parsed form of a filing, persisted per filing.
// FullText is retained as the source of truth: chunk reconstruction is
// best-effort readable, not byte-exact.
type FilingDocument struct {
	FilingID  string          `badgerhold:"key" json:"filing_id"`
	Title     string          `json:"title"`
	FullText  string          `json:"full_text"`
	Markdown  string          `json:"markdown,omitempty"`
	Chunks    []DocumentChunk `json:"chunks,omitempty"`
	Chunked   bool            `json:"chunked"`
	ParsedAt  time.Time       `json:"parsed_at"`
	SourceURL string          `json:"source_url"`
}

// Summary is the AI-generated summary of a filing
type Summary struct {
	ID        string    `badgerhold:"index" json:"id"`
	FilingID  string    `badgerhold:"key" json:"filing_id"`
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
