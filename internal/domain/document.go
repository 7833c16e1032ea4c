package domain

import "time"

// Document is an uploaded file reference. StorageKey locates the content
// in the configured storage backend (S3 or local disk). ExtractedData
// holds the opaque result of document analysis once Processed is set.
type Document struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	ClientID       *string        `json:"clientId,omitempty" db:"client_id"`
	FileName       string         `json:"fileName" db:"file_name"`
	StorageKey     string         `json:"-" db:"storage_key"`
	ContentType    string         `json:"contentType" db:"content_type"`
	SizeBytes      int64          `json:"sizeBytes" db:"size_bytes"`
	Processed      bool           `json:"processed" db:"processed"`
	ExtractedData  map[string]any `json:"extractedData,omitempty" db:"extracted_data"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
}
