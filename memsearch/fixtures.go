package memsearch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/theplant/filtergroup/document"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fixtureNamespace derives stable ids for fixture documents without one.
var fixtureNamespace = uuid.MustParse("8f0c4b7e-2f1d-4a55-9c3e-6d0b1f7a9e21")

// fixtureEpoch is the creation time of the first fixture without one. Later
// entries follow one microsecond apart so the file order is kept.
var fixtureEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ParseFixtures decodes a JSON array of documents. Missing ids and creation
// times are derived from the position in the array.
func ParseFixtures(data []byte) ([]*document.Document, error) {
	var docs []*document.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, "decode fixtures")
	}
	for i, doc := range docs {
		if doc == nil {
			return nil, errors.Errorf("fixture %d is null", i)
		}
		if doc.Module == "" {
			return nil, errors.Errorf("fixture %d has no module", i)
		}
		if doc.ID == uuid.Nil {
			doc.ID = uuid.NewSHA1(fixtureNamespace, fmt.Appendf(nil, "%s/%d", doc.Module, i))
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = fixtureEpoch.Add(time.Duration(i) * time.Microsecond)
		}
		doc.CreatedAt = document.StoredTime(doc.CreatedAt)
	}
	return docs, nil
}

// LoadFile reads fixtures from path.
func LoadFile(path string) ([]*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixtures")
	}
	return ParseFixtures(data)
}

// Reload replaces the content of s with the fixtures in path.
func (s *Store) Reload(path string) error {
	docs, err := LoadFile(path)
	if err != nil {
		return err
	}
	return s.Replace(docs)
}

// Watch reloads path into s every time it is written, created or renamed
// over, until ctx is done. A failed reload keeps the previous documents.
//
// The parent directory is watched rather than the file, so editors that
// replace the file with a new inode are still noticed.
func (s *Store) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrap(err, "watch fixtures directory")
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				logger.Debug("fsnotify watcher channel is closed.")
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				logger.Debug("Received unhandled event from fsnotify.", "event", event.String())
				continue
			}
			if err := s.Reload(path); err != nil {
				logger.Error("Failed to reload fixtures.", "path", path, "error", err)
				continue
			}
			logger.Info("Reloaded fixtures.", "path", path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "watch fixtures")
		}
	}
}
