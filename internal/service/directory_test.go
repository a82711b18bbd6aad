package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBatchReader struct {
	recordID string
	err      error
	calls    int
}

func (s *stubBatchReader) ReadBatch(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.recordID, nil
}

func TestDirectoryResolve(t *testing.T) {
	reader := &stubBatchReader{recordID: "batch-rec-3"}
	dir := NewBatchDirectory(reader, nil, "dev", 0, nil)

	ref, err := dir.Resolve(context.Background(), "batch-7")
	require.NoError(t, err)

	assert.Equal(t, 7, ref.Number)
	assert.Equal(t, "batch-rec-3", ref.RecordID)
	assert.Equal(t, 1, reader.calls)
}

func TestDirectoryResolveRejectsBadLabel(t *testing.T) {
	reader := &stubBatchReader{}
	dir := NewBatchDirectory(reader, nil, "dev", 0, nil)

	_, err := dir.Resolve(context.Background(), "not-a-number")
	require.Error(t, err)
	assert.Equal(t, 0, reader.calls)
}

func TestDirectoryResolvePropagatesCMSError(t *testing.T) {
	reader := &stubBatchReader{err: errors.New("unreachable")}
	dir := NewBatchDirectory(reader, nil, "dev", 0, nil)

	_, err := dir.Resolve(context.Background(), "7")
	assert.Error(t, err)
}
