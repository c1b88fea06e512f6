package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/postpilot/postpilot/configs"
)

// MediaStore uploads and deletes binary media objects and hands out
// durable read URLs.
type MediaStore interface {
	Upload(ctx context.Context, key string, data []byte, filetype string) (string, error)
	Delete(ctx context.Context, readURL string) error
}

type StorageService struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewStorageService builds the S3 client once; the service is reused for
// the life of the process.
func NewStorageService(c cfg.Config) *StorageService {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		log.Fatal(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})

	return &StorageService{
		client:    client,
		bucket:    c.R2.BucketName,
		publicURL: strings.TrimSuffix(c.R2.PublicURL, "/"),
	}
}

func (s *StorageService) Upload(ctx context.Context, key string, data []byte, filetype string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(filetype),
	}

	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return fmt.Sprintf("%s/%s", s.publicURL, key), nil
}

// Delete resolves the object key from the read URL and removes the object.
// Deleting an object that is already gone succeeds, so repeated cleanup
// passes are safe.
func (s *StorageService) Delete(ctx context.Context, readURL string) error {
	key, err := objectKeyFromURL(readURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func objectKeyFromURL(readURL string) (string, error) {
	u, err := url.Parse(readURL)
	if err != nil {
		return "", err
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", errors.New("no object key in media url")
	}
	return key, nil
}
