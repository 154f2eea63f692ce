package rag

import "time"

// Kind tells what an indexed item was built from.
type Kind string

const (
	KindImage   Kind = "image"
	KindPDFPage Kind = "pdf_page"
	KindText    Kind = "text"
)

// Item is one searchable unit of a deck: a slide image description, the
// text of a PDF page or a chunk of a text document. ModelID is the model
// that wrote the description; EmbeddingModel produced the stored vector.
type Item struct {
	ID             int64     `json:"id"`
	Deck           string    `json:"deck"`
	Kind           Kind      `json:"kind"`
	SourceKey      string    `json:"sourceKey"`
	Page           int       `json:"page"`
	Description    string    `json:"description"`
	ModelID        string    `json:"modelId"`
	EmbeddingModel string    `json:"embeddingModel"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SearchFilter narrows a similarity search. Empty fields match everything.
// Vectors from different embedding models are not comparable, so callers
// set EmbeddingModel to the model that embedded the query.
type SearchFilter struct {
	Deck           string
	EmbeddingModel string
}

// Match is an item returned by a similarity search, nearest first.
type Match struct {
	Item
	Distance float64 `json:"distance"`
}

type AskRequest struct {
	Question string `json:"question"`
	Deck     string `json:"deck,omitempty"` // empty searches every deck
	TopK     int    `json:"topK,omitempty"`
	Lang     string `json:"lang,omitempty"` // "", "auto" or a code like "pt"
}

type SourceRef struct {
	ItemID    int64   `json:"itemId"`
	Deck      string  `json:"deck"`
	Kind      Kind    `json:"kind"`
	SourceKey string  `json:"sourceKey"`
	Page      int     `json:"page"`
	Distance  float64 `json:"distance"`
}

type Usage struct {
	PromptTokens     int   `json:"promptTokens"`
	CompletionTokens int   `json:"completionTokens"`
	LatencyMS        int64 `json:"latencyMs"`
}

type AskResponse struct {
	Answer   string      `json:"answer"`
	Entities string      `json:"entities,omitempty"`
	Lang     string      `json:"lang"`
	ModelID  string      `json:"modelId,omitempty"`
	Usage    Usage       `json:"usage"`
	Sources  []SourceRef `json:"sources"`
}

// QAPair is a generated question with its expected answer.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
