package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	cfg "github.com/mediaflux/hub/configs"
)

// StorageService pushes local media to S3-compatible storage and hands back
// the public URL the remote publish API downloads from.
type StorageService struct {
	config cfg.Config
}

func NewStorageService(config cfg.Config) *StorageService {
	return &StorageService{config: config}
}

func (s *StorageService) client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.Storage.AccessKey, s.config.Storage.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.config.Storage.AccountID))
	}), nil
}

// Upload stores the file under key and returns its public URL.
func (s *StorageService) Upload(ctx context.Context, key, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("reading media file: %w", err)
	}

	contentType := "application/octet-stream"
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}

	client, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	key = key + filepath.Ext(localPath)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Storage.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("uploading media: %w", err)
	}

	return fmt.Sprintf("%s/%s", s.config.Storage.PublicBaseURL, key), nil
}
