package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	var client S3Client = NewMemoryClient()

	require.NoError(t, client.Upload(ctx, "certs", "a/b.pdf", strings.NewReader("%PDF-1.4"), "application/pdf"))

	body, err := client.Download(ctx, "certs", "a/b.pdf")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	url, err := client.GetPresignedURL(ctx, "certs", "a/b.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://certs/a%2Fb.pdf?expires="))

	contentType, ok := client.(*MemoryClient).ContentType("certs", "a/b.pdf")
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", contentType)

	require.NoError(t, client.Delete(ctx, "certs", "a/b.pdf"))
	_, err = client.Download(ctx, "certs", "a/b.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryClient_PresignMissing(t *testing.T) {
	_, err := NewMemoryClient().GetPresignedURL(context.Background(), "certs", "nope", time.Minute)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
