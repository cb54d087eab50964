package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"sync"
	"time"
)

// ErrHandleNotFound is returned for unknown or released media handles.
var ErrHandleNotFound = errors.New("storage: media handle not found")

// Handle is a locally resolvable reference to fetched media bytes.
type Handle struct {
	ID        string
	Key       string
	URL       string
	MIMEType  string
	Size      int64
	CreatedAt time.Time
}

// MediaStore tracks every handle it creates so they can be released on
// teardown.
type MediaStore struct {
	files     *FileStore
	urlPrefix string

	mu      sync.RWMutex
	handles map[string]Handle
}

// NewMediaStore serves handles under urlPrefix (for example "/v1/media/").
func NewMediaStore(files *FileStore, urlPrefix string) *MediaStore {
	return &MediaStore{
		files:     files,
		urlPrefix: urlPrefix,
		handles:   make(map[string]Handle),
	}
}

// Put writes data for id and returns its handle.
func (m *MediaStore) Put(ctx context.Context, id string, data []byte, mimeType string) (Handle, error) {
	if id == "" {
		return Handle{}, errors.New("storage: media id is required")
	}
	key, err := m.files.Write(ctx, "media/"+id+extensionFor(mimeType), data)
	if err != nil {
		return Handle{}, err
	}
	h := Handle{
		ID:        id,
		Key:       key,
		URL:       m.urlPrefix + id,
		MIMEType:  mimeType,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()
	return h, nil
}

// Lookup returns the handle registered for id.
func (m *MediaStore) Lookup(id string) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[id]
	return h, ok
}

// Open returns the handle and an open file for id.
func (m *MediaStore) Open(id string) (Handle, *os.File, error) {
	h, ok := m.Lookup(id)
	if !ok {
		return Handle{}, nil, ErrHandleNotFound
	}
	f, err := m.files.Open(h.Key)
	if err != nil {
		return Handle{}, nil, err
	}
	return h, f, nil
}

// Release deletes the bytes behind id and forgets the handle.
func (m *MediaStore) Release(id string) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	delete(m.handles, id)
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	return m.files.Remove(h.Key)
}

// ReleaseAll releases every tracked handle and joins the failures.
func (m *MediaStore) ReleaseAll() error {
	m.mu.Lock()
	handles := m.handles
	m.handles = make(map[string]Handle)
	m.mu.Unlock()

	var errs []error
	for id, h := range handles {
		if err := m.files.Remove(h.Key); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Len reports the number of live handles.
func (m *MediaStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "video/mp4", "":
		return ".mp4"
	case "video/webm":
		return ".webm"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
