package lib

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDetectUpload(t *testing.T) {
	mime, err := DetectUpload(pngHeader, DefaultProofUploadConfig)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = DetectUpload([]byte("#!/bin/sh\necho hi"), DefaultProofUploadConfig)
	assert.Error(t, err)

	big := bytes.Repeat([]byte{0}, int(DefaultProofUploadConfig.MaxSizeBytes)+1)
	_, err = DetectUpload(big, DefaultProofUploadConfig)
	assert.ErrorContains(t, err, "5 MB")
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir, "http://localhost:9090/uploads/")

	url, err := u.Upload(context.Background(), "payment-proofs/abc/receipt.png", "image/png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9090/uploads/payment-proofs/abc/receipt.png", url)

	stored, err := os.ReadFile(filepath.Join(dir, "payment-proofs", "abc", "receipt.png"))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)

	require.NoError(t, u.Remove(context.Background(), url))
	_, err = os.Stat(filepath.Join(dir, "payment-proofs", "abc", "receipt.png"))
	assert.True(t, os.IsNotExist(err))

	_, err = u.Upload(context.Background(), "../escape.png", "image/png", pngHeader)
	assert.Error(t, err)
	assert.Error(t, u.Remove(context.Background(), "https://elsewhere/x.png"))
}
