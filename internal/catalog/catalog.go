package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Document statuses written by the ingestion side. Only completed documents
// are searchable.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is the catalog row for one uploaded legal document.
type Document struct {
	ID         string `gorm:"primaryKey;size:64"`
	Filename   string `gorm:"not null;size:512"`
	Status     string `gorm:"index;not null;size:32"`
	ChunkCount int
	PageCount  int
	UploadedAt int64 `gorm:"autoCreateTime"`
}

// TableName keeps the catalog table name stable across GORM versions.
func (Document) TableName() string {
	return "documents"
}

// ErrDocumentNotFound is returned when a requested document id is unknown.
var ErrDocumentNotFound = errors.New("document not found")

// DAL provides data access for the document catalog.
type DAL struct {
	db *gorm.DB
}

// NewDAL creates a catalog DAL over the given database.
func NewDAL(db *gorm.DB) *DAL {
	return &DAL{db: db}
}

// Migrate creates or updates the catalog table.
func (dal *DAL) Migrate() error {
	return dal.db.AutoMigrate(&Document{})
}

// ListCompleted returns every searchable document, ordered by upload time.
// This is the default scope when a query names no documents.
func (dal *DAL) ListCompleted(ctx context.Context) ([]*Document, error) {
	var docs []*Document
	result := dal.db.WithContext(ctx).
		Where("status = ?", StatusCompleted).
		Order("uploaded_at").
		Find(&docs)
	if result.Error != nil {
		return nil, result.Error
	}
	return docs, nil
}

// GetByIDs returns the catalog rows for the given document ids. Unknown ids
// are absent from the result, not an error.
func (dal *DAL) GetByIDs(ctx context.Context, ids []string) ([]*Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []*Document
	result := dal.db.WithContext(ctx).Where("id IN ?", ids).Find(&docs)
	if result.Error != nil {
		return nil, result.Error
	}
	return docs, nil
}

// Get returns a single catalog row.
func (dal *DAL) Get(ctx context.Context, id string) (*Document, error) {
	var doc Document
	result := dal.db.WithContext(ctx).First(&doc, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, result.Error
	}
	return &doc, nil
}
