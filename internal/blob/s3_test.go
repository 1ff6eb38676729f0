package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aida/internal/domain"
)

// memS3 is an in-memory s3API honoring If-None-Match on PutObject.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemS3() *memS3 { return &memS3{objects: map[string][]byte{}} }

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := aws.ToString(in.Key)
	if _, ok := m.objects[key]; ok && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (m *memS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	now := time.Now()
	for k, v := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v))), LastModified: &now})
		}
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	mem := newMemS3()
	s := &S3Store{client: mem, bucket: "uploads", prefix: "aida"}
	ctx := context.Background()

	loc, n, err := s.Put(ctx, domain.FixedName("1-b.sql"), strings.NewReader("SELECT 1;"))
	require.NoError(t, err)
	assert.Equal(t, "aida/1-b.sql", loc)
	assert.Equal(t, int64(9), n)

	_, _, err = s.Put(ctx, domain.FixedName("1-b.sql"), strings.NewReader("SELECT 2;"))
	require.ErrorIs(t, err, domain.ErrBlobExists)

	rc, err := s.Open(ctx, loc)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "SELECT 1;", string(body))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, loc, list[0].Location)
	assert.Equal(t, int64(9), list[0].Size)

	require.NoError(t, s.Delete(ctx, loc))
	_, err = s.Open(ctx, loc)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestS3Store_PutRetriesTakenKey(t *testing.T) {
	mem := newMemS3()
	s := &S3Store{client: mem, bucket: "uploads"}
	ctx := context.Background()

	_, _, err := s.Put(ctx, domain.FixedName("1-b.sql"), strings.NewReader("SELECT 1;"))
	require.NoError(t, err)

	names := func(attempt int) string {
		if attempt == 1 {
			return "1-b.sql"
		}
		return "1-ab12cd34-b.sql"
	}
	loc, n, err := s.Put(ctx, names, strings.NewReader("SELECT 2;"))
	require.NoError(t, err)
	assert.Equal(t, "1-ab12cd34-b.sql", loc)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, "SELECT 2;", string(mem.objects[loc]))
	assert.Equal(t, "SELECT 1;", string(mem.objects["1-b.sql"]))
}

func TestReplayReader(t *testing.T) {
	rr := &replayReader{src: strings.NewReader("abcdef")}
	first := make([]byte, 3)
	_, err := io.ReadFull(rr.next(), first)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(first))

	rest, err := io.ReadAll(rr.next())
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(rest))

	again, err := io.ReadAll(rr.next())
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(again))
}

func TestNewS3Store_Endpoint(t *testing.T) {
	_, err := NewS3Store(configS3("", "eu-central-1"))
	require.Error(t, err)

	s, err := NewS3Store(configS3("uploads", "eu-central-1"))
	require.NoError(t, err)
	assert.Equal(t, "uploads", s.bucket)
}
