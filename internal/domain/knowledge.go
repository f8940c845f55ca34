package domain

import (
	"fmt"
	"strings"
	"time"
)

// Source represents the provenance of a knowledge item
type Source string

const (
	SourceUpload  Source = "upload"
	SourceFAQ     Source = "faq"
	SourceManual  Source = "manual"
	SourceWebsite Source = "website"
)

// Category represents the topical tag of a knowledge item
type Category string

const (
	CategoryProduto     Category = "produto"
	CategoryFinanceiro  Category = "financeiro"
	CategoryJuridico    Category = "juridico"
	CategoryOperacional Category = "operacional"
	CategoryGeral       Category = "geral"
)

// DocumentType represents the original document format
type DocumentType string

const (
	DocumentTypePDF   DocumentType = "pdf"
	DocumentTypeDOCX  DocumentType = "docx"
	DocumentTypeTXT   DocumentType = "txt"
	DocumentTypeVideo DocumentType = "video"
	DocumentTypeAudio DocumentType = "audio"
	DocumentTypeWeb   DocumentType = "web"
)

const (
	// MinContentLength rejects garbage/empty extractions at ingestion
	MinContentLength = 20
	// MaxContentLength bounds a single chunk's content
	MaxContentLength = 8000
)

// Metadata carries provenance for a knowledge item. ChunkIndex and
// TotalChunks are set by the ingestion orchestrator; Extra holds any
// future fields without loosening the rest of the structure.
type Metadata struct {
	ChunkIndex  int
	TotalChunks int
	FileName    string
	FileSize    int64
	MimeType    string
	Extra       map[string]string
}

// KnowledgeItem is one embedded passage in the knowledge base. Items are
// created once at ingestion and never mutated afterwards.
type KnowledgeItem struct {
	ID           string
	Title        string
	Content      string
	Source       Source
	Category     Category
	DocumentType DocumentType
	Embedding    []float32
	FileURL      string
	Metadata     Metadata
	CreatedAt    time.Time
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(item *KnowledgeItem) error {
	if item == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}

	if item.ID == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "knowledge item ID is required", ErrMissingRequiredField)
	}

	if item.Title == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "knowledge item Title is required", ErrMissingRequiredField)
	}

	if strings.TrimSpace(item.Content) == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "knowledge item Content is required", ErrMissingRequiredField)
	}

	if len([]rune(item.Content)) > MaxContentLength {
		return ErrContentTooLong
	}

	if !IsValidSource(item.Source) {
		return ErrInvalidSource
	}

	if !IsValidCategory(item.Category) {
		return ErrInvalidCategory
	}

	if !IsValidDocumentType(item.DocumentType) {
		return ErrInvalidDocumentType
	}

	if item.Metadata.TotalChunks > 0 && item.Metadata.ChunkIndex >= item.Metadata.TotalChunks {
		return NewDomainError(ErrCodeValidation, "chunk index out of range")
	}

	return nil
}

// IsValidSource checks if a Source is a member of the closed set
func IsValidSource(s Source) bool {
	switch s {
	case SourceUpload, SourceFAQ, SourceManual, SourceWebsite:
		return true
	}
	return false
}

// IsValidCategory checks if a Category is a member of the closed set
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryProduto, CategoryFinanceiro, CategoryJuridico, CategoryOperacional, CategoryGeral:
		return true
	}
	return false
}

// IsValidDocumentType checks if a DocumentType is a member of the closed set
func IsValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypePDF, DocumentTypeDOCX, DocumentTypeTXT,
		DocumentTypeVideo, DocumentTypeAudio, DocumentTypeWeb:
		return true
	}
	return false
}

// Sources lists the closed set of provenance tags
func Sources() []Source {
	return []Source{SourceUpload, SourceFAQ, SourceManual, SourceWebsite}
}

// Categories lists the closed set of topical tags
func Categories() []Category {
	return []Category{CategoryProduto, CategoryFinanceiro, CategoryJuridico, CategoryOperacional, CategoryGeral}
}
