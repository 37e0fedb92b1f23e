package catalog

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/infra/upload"
)

// Upload errors
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrTooLarge          = errors.New("upload exceeds size limit")
	ErrInvalidMetadata   = errors.New("invalid track metadata")
)

// UploadMeta is the user-supplied description of an uploaded file.
type UploadMeta struct {
	Title    string `json:"title" validate:"required,max=200"`
	Artist   string `json:"artist" validate:"max=200"`
	Album    string `json:"album" validate:"max=200"`
	Genre    string `json:"genre" validate:"max=64"`
	Duration int    `json:"duration" validate:"gte=0"` // seconds
}

// CreateUpload stores an uploaded audio file and registers it as a track owned by ownerID.
func (s *Service) CreateUpload(ctx context.Context, ownerID string, meta UploadMeta, filename string, r io.Reader) (*track.Track, error) {
	if !upload.IsAudioFile(filename) {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", filepath.Ext(filename))
	}
	if err := validator.New().Struct(meta); err != nil {
		return nil, errors.Wrapf(ErrInvalidMetadata, "%v", err)
	}

	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create uploads directory")
	}

	id := uuid.New().String()
	name := id + strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.cfg.UploadsDir, name)

	if err := s.writeFile(path, r); err != nil {
		return nil, err
	}

	t := &track.Track{
		ID:       id,
		Title:    meta.Title,
		Artist:   meta.Artist,
		Album:    meta.Album,
		Genre:    meta.Genre,
		Duration: meta.Duration,
		URI:      s.mediaURI(path),
		Source:   track.SourceUpload,
		OwnerID:  ownerID,
	}
	if err := s.tracks.Upsert(ctx, t); err != nil {
		os.Remove(path)
		return nil, err
	}

	zlog.Info().Msgf("track uploaded: track_id=%s, owner=%s, file=%s", t.ID, ownerID, filename)
	return t, nil
}

// ImportFile registers a file that is already in the uploads dir. It is the
// importer used by the inbox watcher; the title is taken from the file name.
func (s *Service) ImportFile(ctx context.Context, path, originalName string) error {
	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	title := strings.TrimSuffix(originalName, filepath.Ext(originalName))

	t := &track.Track{
		ID:     id,
		Title:  strings.TrimSpace(strings.ReplaceAll(title, "_", " ")),
		URI:    s.mediaURI(path),
		Source: track.SourceUpload,
	}
	if t.Title == "" {
		t.Title = id
	}
	return s.tracks.Upsert(ctx, t)
}

func (s *Service) writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create upload file")
	}

	src := r
	if s.cfg.MaxUploadSize > 0 {
		src = io.LimitReader(r, s.cfg.MaxUploadSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return errors.Wrap(err, "failed to write upload file")
	}
	if s.cfg.MaxUploadSize > 0 && n > s.cfg.MaxUploadSize {
		os.Remove(path)
		return errors.Wrapf(ErrTooLarge, "limit %d bytes", s.cfg.MaxUploadSize)
	}
	return nil
}

// mediaURI returns the URI clients use to fetch an uploaded file.
func (s *Service) mediaURI(path string) string {
	if s.cfg.PublicBaseURL == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/media/" + url.PathEscape(filepath.Base(path))
}
