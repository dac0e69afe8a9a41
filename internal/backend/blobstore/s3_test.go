package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket good enough for S3Store.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failPut   bool
	pageLimit int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("put refused")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) && key > aws.ToString(in.ContinuationToken) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if f.pageLimit > 0 && len(keys) > f.pageLimit {
		keys = keys[:f.pageLimit]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func TestS3Store_WriteReadDelete(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "vault", "users/alice/")
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "a.jpg", []byte("img")))
	require.Contains(t, fake.objects, "users/alice/ImageData/a.jpg")

	got, err := store.Read(ctx, "a.jpg")
	require.NoError(t, err)
	require.Equal(t, []byte("img"), got)

	require.NoError(t, store.Delete(ctx, "a.jpg"))
	_, err = store.Read(ctx, "a.jpg")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_ListAndClearOnlyTouchNamespace(t *testing.T) {
	fake := newFakeS3()
	fake.pageLimit = 2
	fake.objects["other/keep.jpg"] = []byte("keep")
	store := NewS3Store(fake, "vault", "")
	ctx := context.Background()

	for _, name := range []string{"c.jpg", "a.jpg", "b.jpg"} {
		require.NoError(t, store.Write(ctx, name, []byte(name)))
	}

	names, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, names)

	require.NoError(t, store.Clear(ctx))
	names, err = store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, names)
	require.Contains(t, fake.objects, "other/keep.jpg")
}

func TestS3Store_WriteError(t *testing.T) {
	fake := newFakeS3()
	fake.failPut = true
	store := NewS3Store(fake, "vault", "")

	err := store.Write(context.Background(), "a.jpg", []byte("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "put refused")
}

func TestS3Store_RejectsInvalidNames(t *testing.T) {
	store := NewS3Store(newFakeS3(), "vault", "")
	require.ErrorIs(t, store.Write(context.Background(), "../x.jpg", nil), ErrInvalidFilename)
}
