package reports

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// ArtifactStorer persists rendered report bytes and returns the artifact's
// location.
type ArtifactStorer interface {
	Store(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// S3PutAPI is the subset of the S3 client the artifact store uses.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArtifactStore writes report artifacts to an S3 bucket.
type S3ArtifactStore struct {
	client S3PutAPI
	bucket string
}

func NewS3ArtifactStore(client S3PutAPI, bucket string) *S3ArtifactStore {
	return &S3ArtifactStore{client: client, bucket: bucket}
}

func (s *S3ArtifactStore) Store(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrap(err, "putting report artifact")
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
