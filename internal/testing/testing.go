// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

// FakeBlobStore is an in-memory test double for the object store. It mirrors
// the real repository's key layout and not-found semantics so service-level
// cascade and streaming tests run without a live backend.
type FakeBlobStore struct {
	mu     sync.Mutex
	tracks map[string][]byte
	images map[string][]byte
}

func NewFakeBlobStore() *FakeBlobStore {
	return &FakeBlobStore{
		tracks: make(map[string][]byte),
		images: make(map[string][]byte),
	}
}

func trackKey(artistID, trackID int64) string {
	return fmt.Sprintf("%d/%d", artistID, trackID)
}

func (f *FakeBlobStore) PutTrack(ctx context.Context, artistID, trackID int64, data io.Reader, size int64, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks[trackKey(artistID, trackID)] = buf
	return nil
}

func (f *FakeBlobStore) StatTrack(ctx context.Context, artistID, trackID int64) (models.FileStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.tracks[trackKey(artistID, trackID)]
	if !ok {
		return models.FileStat{}, fmt.Errorf("%w: track '%d'", shared.ErrMusicFileNotFound, trackID)
	}
	return models.FileStat{Size: int64(len(data))}, nil
}

func (f *FakeBlobStore) StreamTrack(ctx context.Context, artistID, trackID, start, end int64) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.tracks[trackKey(artistID, trackID)]
	if !ok {
		return nil, fmt.Errorf("%w: track '%d'", shared.ErrMusicFileNotFound, trackID)
	}
	if start < 0 || start >= int64(len(data)) || end < start {
		return nil, fmt.Errorf("invalid range %d-%d for %d bytes", start, end, len(data))
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	return io.NopCloser(bytes.NewReader(data[start : end+1])), nil
}

func (f *FakeBlobStore) DeleteTrack(ctx context.Context, artistID, trackID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := trackKey(artistID, trackID)
	if _, ok := f.tracks[key]; !ok {
		return fmt.Errorf("%w: track '%d'", shared.ErrMusicFileNotFound, trackID)
	}
	delete(f.tracks, key)
	return nil
}

func (f *FakeBlobStore) PutImage(ctx context.Context, target models.ImageTarget, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[target.Path()] = append([]byte(nil), data...)
	return nil
}

func (f *FakeBlobStore) GetImage(ctx context.Context, target models.ImageTarget) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.images[target.Path()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrImageFileNotFound, target.Path())
	}
	return data, nil
}

func (f *FakeBlobStore) DeleteImage(ctx context.Context, target models.ImageTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.images[target.Path()]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrImageFileNotFound, target.Path())
	}
	delete(f.images, target.Path())
	return nil
}

// HasTrack reports whether an audio object is stored.
func (f *FakeBlobStore) HasTrack(artistID, trackID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tracks[trackKey(artistID, trackID)]
	return ok
}

// HasImage reports whether a cover image is stored.
func (f *FakeBlobStore) HasImage(target models.ImageTarget) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.images[target.Path()]
	return ok
}
