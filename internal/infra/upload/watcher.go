// Package upload watches an inbox directory for audio files and hands them to
// the catalog.
package upload

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// AudioExtensions lists the accepted audio file extensions.
var AudioExtensions = []string{".mp3", ".m4a", ".aac", ".wav", ".flac", ".ogg"}

// IsAudioFile reports whether name has an accepted audio extension.
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Importer registers a file that has been moved into the uploads dir.
// originalName is the file name as it appeared in the inbox.
type Importer func(ctx context.Context, path, originalName string) error

// Config represents watcher configuration.
type Config struct {
	InboxDir   string
	UploadsDir string
	// Settle is how long a file must stay unchanged before it is picked up.
	Settle time.Duration
}

// Watcher moves audio files from the inbox into the uploads dir.
type Watcher struct {
	cfg      Config
	importer Importer

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher creates a new inbox watcher.
func NewWatcher(cfg Config, importer Importer) *Watcher {
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	return &Watcher{
		cfg:      cfg,
		importer: importer,
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches the inbox until ctx is cancelled. Files already in the inbox
// are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.cfg.InboxDir, w.cfg.UploadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory: %s", dir)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.InboxDir); err != nil {
		return errors.Wrapf(err, "failed to watch inbox: %s", w.cfg.InboxDir)
	}
	zlog.Info().Msgf("upload watcher started: inbox=%s", w.cfg.InboxDir)

	w.scan(ctx)

	defer func() {
		w.mu.Lock()
		for path, t := range w.pending {
			if t.Stop() {
				w.wg.Done()
			}
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.wg.Wait()
		zlog.Info().Msg("upload watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Err(err).Msg("upload watcher error")
		}
	}
}

// scan queues files already present in the inbox.
func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.InboxDir)
	if err != nil {
		zlog.Warn().Err(err).Msgf("failed to scan inbox: dir=%s", w.cfg.InboxDir)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.schedule(ctx, filepath.Join(w.cfg.InboxDir, e.Name()))
		}
	}
}

// schedule processes path once it has not changed for the settle time.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !IsAudioFile(path) {
		zlog.Debug().Msgf("ignoring non-audio file: path=%s", path)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			t.Reset(w.cfg.Settle)
			return
		}
		// Already firing
		return
	}

	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.process(ctx, path)
	})
}

func (w *Watcher) process(ctx context.Context, src string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return
	}

	name := filepath.Base(src)
	dst := filepath.Join(w.cfg.UploadsDir, uuid.New().String()+strings.ToLower(filepath.Ext(name)))
	if err := moveFile(src, dst); err != nil {
		zlog.Error().Err(err).Msgf("failed to move upload: src=%s", src)
		return
	}

	if err := w.importer(ctx, dst, name); err != nil {
		zlog.Error().Err(err).Msgf("failed to import upload: file=%s", name)
		return
	}
	zlog.Info().Msgf("upload imported: file=%s, path=%s", name, dst)
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open source")
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create destination")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return errors.Wrap(err, "failed to copy file")
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "failed to close destination")
	}
	return os.Remove(src)
}
