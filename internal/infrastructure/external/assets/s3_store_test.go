package assets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

type fakePresigner struct {
	calls   int
	err     error
	lastKey string
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	f.lastKey = aws.ToString(params.Key)
	return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/" + f.lastKey + "?sig=1"}, nil
}

func TestS3Store_GetFileURLIsDurable(t *testing.T) {
	p := &fakePresigner{}
	store := NewS3StoreWithPresigner(p, S3Config{Bucket: "evidence", Prefix: "/tasks/", URLExpiry: 15 * time.Minute}, nil)

	ref, err := store.GetFileURL(context.Background(), "photo 1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "s3://evidence/tasks/photo%201.jpg", ref)
	assert.Zero(t, p.calls, "nothing is signed at write time")
}

func TestS3Store_SignURL(t *testing.T) {
	p := &fakePresigner{}
	store := NewS3StoreWithPresigner(p, S3Config{Bucket: "evidence", Prefix: "tasks", URLExpiry: 15 * time.Minute}, nil)
	ctx := context.Background()

	ref, err := store.GetFileURL(ctx, "photo 1.jpg")
	require.NoError(t, err)

	signed, err := store.SignURL(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/tasks/photo 1.jpg?sig=1", signed)
	assert.Equal(t, "tasks/photo 1.jpg", p.lastKey)
	assert.Equal(t, 15*time.Minute, p.expires)

	_, err = store.SignURL(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "every read gets a fresh signature")

	for _, foreign := range []string{"https://cdn.example.com/a.jpg", "s3://other-bucket/a.jpg"} {
		out, err := store.SignURL(ctx, foreign)
		require.NoError(t, err)
		assert.Equal(t, foreign, out)
	}
	assert.Equal(t, 2, p.calls)
}

func TestS3Store_InvalidNames(t *testing.T) {
	store := NewS3StoreWithPresigner(&fakePresigner{}, S3Config{Bucket: "b"}, nil)
	for _, name := range []string{"", "  ", "../secret", "/etc/passwd"} {
		_, err := store.GetFileURL(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidFileName, name)
	}
}

func TestS3Store_FailureIsUnavailable(t *testing.T) {
	p := &fakePresigner{err: errors.New("boom")}
	store := NewS3StoreWithPresigner(p, S3Config{Bucket: "b"}, nil)

	_, err := store.SignURL(context.Background(), "s3://b/a.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrAssetStoreUnavailable)
	assert.True(t, shared.IsRetryable(err))
}

func TestStaticStore(t *testing.T) {
	store, err := NewStaticStore("https://cdn.example.com/uploads")
	require.NoError(t, err)

	u, err := store.GetFileURL(context.Background(), "a b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/uploads/a%20b.jpg", u)

	signed, err := store.SignURL(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, u, signed)

	_, err = store.GetFileURL(context.Background(), "../x")
	assert.ErrorIs(t, err, ErrInvalidFileName)

	_, err = NewStaticStore("not a url")
	assert.Error(t, err)
}
