package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDocumentObjectKey(t *testing.T) {
	leaseID := uuid.New().String()

	key, err := DocumentObjectKey(leaseID, 3, "agreement.pdf")
	require.NoError(t, err)
	require.Equal(t, "leases/"+leaseID+"/v3/agreement.pdf", key)

	// path components in the filename are stripped
	key, err = DocumentObjectKey(leaseID, 0, "../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, "leases/"+leaseID+"/v0/passwd", key)

	_, err = DocumentObjectKey("", 1, "agreement.pdf")
	require.Error(t, err)

	_, err = DocumentObjectKey(leaseID, 1, "  ")
	require.Error(t, err)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	body := "signed lease agreement"

	written, err := store.Put(ctx, "leases/abc/v1/agreement.pdf", "application/pdf", strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, int64(len(body)), written)

	reader, err := store.Get(ctx, "leases/abc/v1/agreement.pdf")
	require.NoError(t, err)
	defer reader.Close()

	read, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, body, string(read))

	require.NoError(t, store.Delete(ctx, "leases/abc/v1/agreement.pdf"))

	_, err = store.Get(ctx, "leases/abc/v1/agreement.pdf")
	require.ErrorIs(t, err, ErrObjectNotFound)

	err = store.Delete(ctx, "leases/abc/v1/agreement.pdf")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside", "text/plain", strings.NewReader("x"))
	require.Error(t, err)
}
