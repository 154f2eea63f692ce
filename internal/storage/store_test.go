package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type s3Mock struct {
	mock.Mock
}

func (m *s3Mock) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *s3Mock) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *s3Mock) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func body(s string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s))}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "multimodal/img/a.jpg", Key("multimodal/img", "a.jpg"))
	assert.Equal(t, "multimodal/img/a.jpg", Key("/multimodal/img/", "a.jpg"))
	assert.Equal(t, "a.jpg", Key("", "a.jpg"))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(&s3Mock{}, "", nil)
	assert.Error(t, err)
}

func TestStore_Upload(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "slide_1.jpg")
	require.NoError(t, os.WriteFile(local, []byte("jpeg"), 0o644))

	m := &s3Mock{}
	m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "demo-bucket" && aws.ToString(in.Key) == "multimodal/img/slide_1.jpg"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	store, err := New(m, "demo-bucket", quietLogger())
	require.NoError(t, err)

	key, err := store.Upload(context.Background(), local, "multimodal/img")
	require.NoError(t, err)
	assert.Equal(t, "multimodal/img/slide_1.jpg", key)
	m.AssertExpectations(t)
}

func TestStore_Upload_Errors(t *testing.T) {
	m := &s3Mock{}
	store, err := New(m, "demo-bucket", quietLogger())
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), "p")
	assert.Error(t, err)

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))
	m.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied")).Once()

	_, err = store.Upload(context.Background(), local, "p")
	assert.ErrorContains(t, err, "access denied")
}

func TestStore_DownloadPrefix(t *testing.T) {
	m := &s3Mock{}
	m.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Prefix) == "multimodal/img"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []s3types.Object{
			{Key: aws.String("multimodal/img/")},
			{Key: aws.String("multimodal/img/slide_1.jpg")},
			{Key: aws.String("multimodal/img/notes.txt")},
			{Key: aws.String("multimodal/img/slide_2.jpg")},
		},
	}, nil).Once()
	m.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "multimodal/img/slide_1.jpg"
	})).Return(body("one"), nil).Once()
	m.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "multimodal/img/slide_2.jpg"
	})).Return(body("two"), nil).Once()

	store, err := New(m, "demo-bucket", quietLogger())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "img")
	paths, err := store.DownloadPrefix(context.Background(), "multimodal/img", dir, ".jpg")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "slide_1.jpg"), filepath.Join(dir, "slide_2.jpg")}, paths)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	m.AssertExpectations(t)
}

func TestStore_List_Error(t *testing.T) {
	m := &s3Mock{}
	m.On("ListObjectsV2", mock.Anything, mock.Anything).Return(nil, errors.New("no such bucket")).Once()

	store, err := New(m, "demo-bucket", quietLogger())
	require.NoError(t, err)

	_, err = store.DownloadPrefix(context.Background(), "p", t.TempDir(), "")
	assert.ErrorContains(t, err, "no such bucket")
}

type cfnMock struct {
	mock.Mock
}

func (m *cfnMock) DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*cloudformation.DescribeStacksOutput)
	return out, args.Error(1)
}

func TestResolveBucket(t *testing.T) {
	tests := map[string]struct {
		out       *cloudformation.DescribeStacksOutput
		err       error
		expected  string
		expectErr bool
	}{
		"found": {
			out: &cloudformation.DescribeStacksOutput{Stacks: []cfntypes.Stack{{
				Outputs: []cfntypes.Output{
					{OutputKey: aws.String("Collection"), OutputValue: aws.String("x")},
					{OutputKey: aws.String("BucketName"), OutputValue: aws.String("sagemaker-us-east-1-123")},
				},
			}}},
			expected: "sagemaker-us-east-1-123",
		},
		"no-stack": {
			out:       &cloudformation.DescribeStacksOutput{},
			expectErr: true,
		},
		"no-output": {
			out:       &cloudformation.DescribeStacksOutput{Stacks: []cfntypes.Stack{{}}},
			expectErr: true,
		},
		"api-error": {
			err:       errors.New("stack does not exist"),
			expectErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := &cfnMock{}
			m.On("DescribeStacks", mock.Anything, mock.MatchedBy(func(in *cloudformation.DescribeStacksInput) bool {
				return aws.ToString(in.StackName) == "multimodal-blog2-stack"
			})).Return(tt.out, tt.err).Once()

			bucket, err := ResolveBucket(context.Background(), m, "multimodal-blog2-stack")
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, bucket)
		})
	}
}
