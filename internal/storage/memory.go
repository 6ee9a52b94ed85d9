package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/victornm/lms/internal/errors"
)

// Memory is an ObjectStore for local development and tests. Its signed URLs are not
// servable; they only identify the object.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) Put(_ context.Context, object string, r io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("memory: read %s: %w", object, err)
	}

	m.mu.Lock()
	m.objects[object] = memoryObject{data: buf.Bytes(), contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *Memory) SignedURL(_ context.Context, object string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[object]
	m.mu.RUnlock()
	if !ok {
		return "", errors.NotFound("object not found: %s", object)
	}

	u := url.URL{
		Scheme:   "memory",
		Path:     "/" + object,
		RawQuery: url.Values{"expires": {time.Now().Add(ttl).UTC().Format(time.RFC3339)}}.Encode(),
	}
	return u.String(), nil
}

func (m *Memory) Delete(_ context.Context, object string) error {
	m.mu.Lock()
	delete(m.objects, object)
	m.mu.Unlock()
	return nil
}

// Get returns the content and the content type of object.
func (m *Memory) Get(object string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[object]
	return o.data, o.contentType, ok
}
