package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const artifactContentType = "video/mp4"

type awsRepository struct {
	client *s3.Client
	bucket string
}

func NewAwsRepository(awsClient *s3.Client, bucket string) exports.AWSRepository {
	return &awsRepository{
		client: awsClient,
		bucket: bucket,
	}
}

func (a *awsRepository) PutArtifact(ctx context.Context, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact : %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat artifact : %w", err)
	}
	size := info.Size()
	contentType := artifactContentType

	_, err = a.client.PutObject(
		ctx,
		&s3.PutObjectInput{
			Bucket:        &a.bucket,
			Key:           &key,
			ContentType:   &contentType,
			ContentLength: &size,
			Body:          file,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to upload artifact : %w", err)
	}
	return nil
}

func (a *awsRepository) RemoveArtifact(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to remove artifact : %w", err)
	}
	return nil
}
