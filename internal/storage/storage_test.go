package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key := NewKey("org-1", "W2 Form.PDF")
	assert.True(t, strings.HasPrefix(key, "org-1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	// Distinct keys for the same filename.
	assert.NotEqual(t, key, NewKey("org-1", "W2 Form.PDF"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeFor("return.pdf"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("blob.xyz123"))
	assert.Contains(t, ContentTypeFor("pic.PNG"), "image/png")
}

func TestLocalRoundTrip(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := NewKey("org-1", "doc.pdf")
	require.NoError(t, l.Put(ctx, key, "application/pdf", strings.NewReader("%PDF-1.4")))

	rc, ct, err := l.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", ct)

	require.NoError(t, l.Delete(ctx, key))
	_, _, err = l.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalRejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, l.Put(ctx, "../escape", "", strings.NewReader("x")))
	_, _, err = l.Get(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalDeleteMissing(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	assert.ErrorIs(t, l.Delete(context.Background(), "org-1/nope.pdf"), ErrNotFound)
}

type fakeS3 struct {
	objects map[string][]byte
	types_  map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types_: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	if in.ContentType != nil {
		f.types_[*in.Key] = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	out := &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}
	if ct, ok := f.types_[*in.Key]; ok {
		out.ContentType = &ct
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	api := newFakeS3()
	s := NewS3(api, "crm-docs")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "org-1/a.pdf", "application/pdf", strings.NewReader("data")))

	rc, ct, err := s.Get(ctx, "org-1/a.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "data", string(body))
	assert.Equal(t, "application/pdf", ct)

	_, _, err = s.Get(ctx, "org-1/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "org-1/a.pdf"))
	_, _, err = s.Get(ctx, "org-1/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}
