package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryClient keeps objects in process memory. It backs local runs without
// a bucket and tests.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryClient creates an empty in-memory store.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{objects: make(map[string]memoryObject)}
}

func objectPath(bucket, key string) string {
	return bucket + "/" + key
}

func (c *MemoryClient) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[objectPath(bucket, key)] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (c *MemoryClient) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[objectPath(bucket, key)]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (c *MemoryClient) Delete(ctx context.Context, bucket, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, objectPath(bucket, key))
	return nil
}

func (c *MemoryClient) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	c.mu.RLock()
	_, ok := c.objects[objectPath(bucket, key)]
	c.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	expires := time.Now().Add(expiration).Unix()
	return fmt.Sprintf("memory://%s/%s?expires=%d", bucket, url.PathEscape(key), expires), nil
}

// ContentType returns the content type an object was stored with.
func (c *MemoryClient) ContentType(bucket, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[objectPath(bucket, key)]
	return obj.contentType, ok
}
