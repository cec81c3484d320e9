package aws

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploader stores payment proofs in the assets bucket.
type S3Uploader struct {
	client  S3API
	bucket  string
	baseURL string
}

func NewS3Uploader(client S3API, bucket string, publicBaseURL string) *S3Uploader {
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}
	return &S3Uploader{client: client, bucket: bucket, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func NewS3UploaderFromConfig(cfg aws.Config, bucket string, publicBaseURL string) *S3Uploader {
	return NewS3Uploader(s3.NewFromConfig(cfg), bucket, publicBaseURL)
}

func (u *S3Uploader) Upload(ctx context.Context, name string, contentType string, body []byte) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		zap.L().Error("could not put object to S3 bucket", zap.String("key", name), zap.Error(err))
		return "", err
	}
	zap.L().Debug("added object to bucket", zap.String("key", name), zap.String("bucket", u.bucket))
	return u.baseURL + "/" + name, nil
}

func (u *S3Uploader) Remove(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, u.baseURL+"/")
	if !ok {
		return fmt.Errorf("%s is not in bucket %s", url, u.bucket)
	}
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	return err
}
