package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 emulates conditional writes of a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	lastPut *s3.PutObjectInput
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; ok && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func stubS3(t *testing.T, client s3API) *string {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}

	var endpoint string
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		endpoint = aws.ToString(opts.BaseEndpoint)
		return client
	}
	return &endpoint
}

func testS3Options() S3Options {
	return S3Options{
		Region:       "us-east-1",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		Bucket:       "escrow",
		BaseEndpoint: "http://127.0.0.1:9000",
	}
}

func TestNewS3ObjectStore(t *testing.T) {
	endpoint := stubS3(t, newFakeS3())

	store, err := NewS3ObjectStore(context.Background(), testS3Options())
	require.NoError(t, err)
	assert.Equal(t, "escrow", store.bucket)
	assert.Equal(t, "http://127.0.0.1:9000", *endpoint)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = NewS3ObjectStore(context.Background(), testS3Options())
	assert.EqualError(t, err, "load-fail")
}

func TestS3ObjectStore_ConditionalPut(t *testing.T) {
	fake := newFakeS3()
	stubS3(t, fake)
	store, err := NewS3ObjectStore(context.Background(), testS3Options())
	require.NoError(t, err)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "staged.enc")
	require.NoError(t, os.WriteFile(src, []byte("ciphertext"), 0o600))

	require.NoError(t, store.Put(ctx, "proj1_v1.enc", src))
	assert.Equal(t, "*", aws.ToString(fake.lastPut.IfNoneMatch))
	assert.Equal(t, int64(len("ciphertext")), aws.ToInt64(fake.lastPut.ContentLength))
	assert.Equal(t, "escrow", aws.ToString(fake.lastPut.Bucket))

	assert.ErrorIs(t, store.Put(ctx, "proj1_v1.enc", src), common.ErrConflict)

	ok, err := store.Exists(ctx, "proj1_v1.enc")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "proj1_v1.enc"))
	ok, err = store.Exists(ctx, "proj1_v1.enc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3ObjectStore_PutErrors(t *testing.T) {
	fake := newFakeS3()
	stubS3(t, fake)
	store, err := NewS3ObjectStore(context.Background(), testS3Options())
	require.NoError(t, err)

	assert.ErrorIs(t, store.Put(context.Background(), "k.enc", filepath.Join(t.TempDir(), "missing")), common.ErrPersistence)

	src := filepath.Join(t.TempDir(), "staged.enc")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))
	fake.putErr = errors.New("network down")
	err = store.Put(context.Background(), "k.enc", src)
	assert.ErrorIs(t, err, common.ErrPersistence)
	assert.NotErrorIs(t, err, common.ErrConflict)
}
