package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/college-housing/internal/config"
)

type fakePut struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePut) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Upload_MinioURL(t *testing.T) {
	put := &fakePut{}
	s := NewS3WithClient(put, config.StorageConfig{
		S3Bucket: "units", S3Endpoint: "http://localhost:9000/", Folder: "college-housing",
	})

	url, err := s.Upload(context.Background(), "units/3/images", "My Flat.JPG", strings.NewReader("img"))
	require.NoError(t, err)

	key := aws.ToString(put.in.Key)
	assert.True(t, strings.HasPrefix(key, "college-housing/units/3/images/My-Flat-"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)
	assert.Equal(t, "units", aws.ToString(put.in.Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(put.in.ContentType))
	assert.Equal(t, "img", put.body)
	assert.Equal(t, "http://localhost:9000/units/"+key, url)
}

func TestS3Upload_AWSURLAndError(t *testing.T) {
	put := &fakePut{}
	s := NewS3WithClient(put, config.StorageConfig{S3Bucket: "b", S3Region: "eu-west-1"})
	url, err := s.Upload(context.Background(), "docs", "deed.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://b.s3.eu-west-1.amazonaws.com/docs/deed-"), url)

	put.err = errors.New("denied")
	_, err = s.Upload(context.Background(), "docs", "deed.pdf", strings.NewReader("%PDF"))
	assert.ErrorContains(t, err, "denied")
}

func TestObjectName(t *testing.T) {
	a, b := objectName("../../etc/passwd"), objectName("../../etc/passwd")
	assert.NotEqual(t, a, b)
	assert.False(t, strings.Contains(a, "/"))
	assert.True(t, strings.HasPrefix(a, "passwd-"))

	assert.True(t, strings.HasPrefix(objectName(".png"), "file-"))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}
