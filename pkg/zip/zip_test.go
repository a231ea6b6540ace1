package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 6, 0, time.UTC)
	entries := []Entry{
		{Filename: "item_01.png", Data: []byte("first")},
		{Filename: "item_03.png", Data: []byte("third")},
	}
	out, err := Archive(entries, at)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	for i, f := range zr.File {
		assert.Equal(t, entries[i].Filename, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		assert.Equal(t, entries[i].Data, got)
	}

	again, err := Archive(entries, at)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestArchiveEmpty(t *testing.T) {
	out, err := Archive(nil, time.Time{})
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}
