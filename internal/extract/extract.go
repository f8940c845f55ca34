package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/sabia-ai/sabia/internal/domain"
)

// Text extracts plain text from an uploaded document. PDF files go through
// a real parser; text-like types are read as-is. Types that need a
// transcription pipeline (video, audio) are rejected here.
func Text(r io.Reader, docType domain.DocumentType) (string, error) {
	switch docType {
	case domain.DocumentTypePDF:
		return pdfText(r)
	case domain.DocumentTypeTXT, domain.DocumentTypeWeb:
		return plainText(r)
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("text extraction is not supported for document type %q", docType))
	}
}

func plainText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if !utf8.Valid(data) {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "document is not valid UTF-8 text")
	}
	return strings.TrimSpace(string(data)), nil
}

func pdfText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "failed to parse PDF", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", pageNum, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()), nil
}
