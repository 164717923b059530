package domain

// Chunk is an ordered segment of a document's text, alive only during ingestion.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
}

// VectorRecord is the persisted projection of a Chunk.
type VectorRecord struct {
	ID         string
	DocumentID string
	OwnerID    string
	Title      string
	ChunkIndex int
	Text       string
	Embedding  []float32
}

// RetrievedChunk is a search hit normalized at the store boundary.
type RetrievedChunk struct {
	DocumentID string
	Title      string
	Text       string
	ChunkIndex int
	Distance   float64
}

// EmbeddingIntent conditions an embedding for storage or for lookup.
type EmbeddingIntent string

const (
	IntentDocument EmbeddingIntent = "document"
	IntentQuery    EmbeddingIntent = "query"
)
