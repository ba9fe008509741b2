package s3_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convertflow/internal/config"
	"convertflow/internal/storage/s3"
)

func TestPresignedURL_PathStyleEndpoint(t *testing.T) {
	store, err := s3.NewS3Client(context.Background(), &config.S3Config{
		Region:    "us-east-1",
		Bucket:    "artifacts",
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio-secret",
	})
	require.NoError(t, err)

	url, err := store.PresignedURL(context.Background(), "conversions/u1/c1.docx", 600)
	require.NoError(t, err)

	assert.Contains(t, url, "http://localhost:9000/artifacts/conversions/u1/c1.docx")
	assert.Contains(t, url, "X-Amz-Expires=600")
	assert.Contains(t, url, "X-Amz-Signature=")
}
