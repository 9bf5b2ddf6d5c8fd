package service

import (
	"bytes"

	"github.com/classkit/classkit/internal/model"
)

// Blob ceilings. Transport-level validation belongs to the upload handler;
// the core re-checks the same limits before anything reaches storage.
const (
	// MaxSubmissionBytes caps a parent-uploaded signed form.
	MaxSubmissionBytes = 5 << 20
	// MaxFormBytes caps a teacher-provided form, blank or scanned.
	MaxFormBytes = 10 << 20
)

var pdfMagic = []byte("%PDF-")

// ValidateSubmissionBlob checks a parent upload.
func ValidateSubmissionBlob(blob []byte) error {
	return validateBlob(blob, MaxSubmissionBytes)
}

// ValidateFormBlob checks a teacher-provided form.
func ValidateFormBlob(blob []byte) error {
	return validateBlob(blob, MaxFormBytes)
}

func validateBlob(blob []byte, max int) error {
	if len(blob) == 0 {
		return model.Invalidf("form payload is empty")
	}
	if len(blob) > max {
		return model.Invalidf("form payload exceeds %d bytes", max)
	}
	if !bytes.HasPrefix(blob, pdfMagic) {
		return model.Invalidf("form payload is not a PDF document")
	}
	return nil
}
