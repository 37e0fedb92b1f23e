package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunedeck/internal/domain/track"
)

func TestService_CreateUpload(t *testing.T) {
	dir := t.TempDir()
	repo := newMemTracks()
	s := NewService(Config{UploadsDir: dir, MaxUploadSize: 16, PublicBaseURL: "https://deck.example.com/"}, repo, nil)

	got, err := s.CreateUpload(context.Background(), "kim",
		UploadMeta{Title: "Class Song", Genre: "pop", Duration: 95},
		"Class Song.MP3", strings.NewReader("ID3-audio"))
	require.NoError(t, err)

	assert.Equal(t, track.SourceUpload, got.Source)
	assert.Equal(t, "kim", got.OwnerID)
	assert.Equal(t, 95, got.Duration)
	assert.Equal(t, "https://deck.example.com/media/"+got.ID+".mp3", got.URI)

	data, err := os.ReadFile(filepath.Join(dir, got.ID+".mp3"))
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(data))

	stored, err := repo.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, "Class Song", stored.Title)
}

func TestService_CreateUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		meta     UploadMeta
		filename string
		body     []byte
		wantErr  error
	}{
		{name: "unsupported format", meta: UploadMeta{Title: "x"}, filename: "notes.txt", body: []byte("x"), wantErr: ErrUnsupportedFormat},
		{name: "missing title", meta: UploadMeta{}, filename: "a.mp3", body: []byte("x"), wantErr: ErrInvalidMetadata},
		{name: "negative duration", meta: UploadMeta{Title: "x", Duration: -1}, filename: "a.mp3", body: []byte("x"), wantErr: ErrInvalidMetadata},
		{name: "too large", meta: UploadMeta{Title: "x"}, filename: "a.wav", body: bytes.Repeat([]byte("a"), 17), wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			repo := newMemTracks()
			s := NewService(Config{UploadsDir: dir, MaxUploadSize: 16}, repo, nil)

			_, err := s.CreateUpload(context.Background(), "kim", tt.meta, tt.filename, bytes.NewReader(tt.body))
			assert.ErrorIs(t, err, tt.wantErr)

			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries, "failed uploads leave no file behind")
			assert.Empty(t, repo.byID)
		})
	}
}

func TestService_ImportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0c9f.m4a")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	repo := newMemTracks()
	s := NewService(Config{UploadsDir: dir}, repo, nil)
	require.NoError(t, s.ImportFile(context.Background(), path, "morning_assembly.m4a"))

	got, err := repo.Get(context.Background(), "0c9f")
	require.NoError(t, err)
	assert.Equal(t, "morning assembly", got.Title)
	assert.Equal(t, track.SourceUpload, got.Source)
	assert.True(t, strings.HasPrefix(got.URI, "file:///"))
}
