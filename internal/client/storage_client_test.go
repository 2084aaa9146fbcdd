package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbdemo/showcase/internal/config"
)

func TestNewS3Client(t *testing.T) {
	c, err := NewS3Client(&config.StorageConfig{
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "showcase",
		PublicURL:       "https://media.example/",
	})
	require.NoError(t, err)
	assert.True(t, c.IsConfigured())
	assert.Equal(t, "https://media.example/output/job-1/a.png", c.GetPublicURL("output/job-1/a.png"))

	var nilClient *S3Client
	assert.False(t, nilClient.IsConfigured())

	_, err = NewS3Client(&config.StorageConfig{AccessKeyID: "key", SecretAccessKey: "secret"})
	assert.Error(t, err)
}

func TestS3Client_PublicURLWithoutCDN(t *testing.T) {
	c, err := NewS3Client(&config.StorageConfig{
		Region:          "eu-west-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "showcase",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://showcase.s3.eu-west-1.amazonaws.com/k.png", c.GetPublicURL("k.png"))
}
