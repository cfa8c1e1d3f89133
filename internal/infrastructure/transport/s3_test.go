package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

type fakeS3 struct {
	body   string
	err    error
	bucket string
	key    string
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(params.Bucket)
	f.key = aws.ToString(params.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://releases/android/app.apk", "releases", "android/app.apk", false},
		{"s3://releases/", "", "", true},
		{"s3:///app.apk", "", "", true},
		{"https://releases/app.apk", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestS3Transport_Download(t *testing.T) {
	client := &fakeS3{body: "artifact-bytes"}
	tr := NewS3TransportWithClient(client, zaptest.NewLogger(t))
	dest := filepath.Join(t.TempDir(), "app.apk")
	rec := &recorder{}

	tr.Download(context.Background(), "s3://releases/android/app.apk", dest, nil, rec)

	assert.Equal(t, []string{"start", "finish"}, rec.Events())
	assert.Equal(t, "releases", client.bucket)
	assert.Equal(t, "android/app.apk", client.key)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "artifact-bytes", string(data))
}

func TestS3Transport_Error(t *testing.T) {
	tr := NewS3TransportWithClient(&fakeS3{err: errors.New("access denied")}, zaptest.NewLogger(t))
	rec := &recorder{}

	tr.Download(context.Background(), "s3://releases/app.apk", filepath.Join(t.TempDir(), "app.apk"), nil, rec)

	assert.Equal(t, []string{"start", "error"}, rec.Events())
	assert.ErrorContains(t, rec.err, "access denied")
}

func TestS3Transport_InvalidURL(t *testing.T) {
	tr := NewS3TransportWithClient(&fakeS3{}, zaptest.NewLogger(t))
	rec := &recorder{}

	tr.Download(context.Background(), "s3://bucket-only", filepath.Join(t.TempDir(), "app.apk"), nil, rec)

	assert.Equal(t, []string{"start", "error"}, rec.Events())
	assert.False(t, errors.Is(rec.err, update.ErrUnsupportedScheme))
}
