package domain

import (
	"time"
)

// ArchiveExport describes a history archive written to object storage.
type ArchiveExport struct {
	TrainerID   string    `json:"trainerId"`
	ObjectKey   string    `json:"objectKey"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"` // presigned, short lived
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HistoryArchive is the document stored by an export.
type HistoryArchive struct {
	TrainerID   string       `json:"trainerId"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Series      []Series     `json:"series"`
	Commitments []Commitment `json:"commitments"`
	Instances   []Instance   `json:"instances"`
}
