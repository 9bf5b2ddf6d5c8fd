package service_test

import (
	"bytes"
	"testing"

	"github.com/classkit/classkit/internal/model"
	"github.com/classkit/classkit/internal/service"
	"github.com/stretchr/testify/require"
)

func TestValidateSubmissionBlob(t *testing.T) {
	require.NoError(t, service.ValidateSubmissionBlob(validPDF))

	require.ErrorIs(t, service.ValidateSubmissionBlob(nil), model.ErrInvalidInput)
	require.ErrorIs(t, service.ValidateSubmissionBlob([]byte("plain text")), model.ErrInvalidInput)

	oversized := append([]byte("%PDF-"), bytes.Repeat([]byte{0}, service.MaxSubmissionBytes)...)
	require.ErrorIs(t, service.ValidateSubmissionBlob(oversized), model.ErrInvalidInput)
}

func TestValidateFormBlobAllowsLargerScans(t *testing.T) {
	scan := append([]byte("%PDF-"), bytes.Repeat([]byte{0}, service.MaxSubmissionBytes)...)
	require.NoError(t, service.ValidateFormBlob(scan))

	oversized := append([]byte("%PDF-"), bytes.Repeat([]byte{0}, service.MaxFormBytes)...)
	require.ErrorIs(t, service.ValidateFormBlob(oversized), model.ErrInvalidInput)
}
