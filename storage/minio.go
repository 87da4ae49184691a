package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"kwadrop/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var minioClient *minio.Client

// InitMinio initializes the MinIO client and ensures the avatar bucket
// exists.
func InitMinio() error {
	cfg := config.Get()

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("Created bucket: %s", cfg.MinioBucket)
	}

	minioClient = client
	log.Println("MinIO client initialized.")
	return nil
}

// GetMinioClient returns the MinIO client instance.
func GetMinioClient() *minio.Client {
	return minioClient
}

// AvatarStore stores user avatar images in the avatar bucket.
type AvatarStore struct {
	client *minio.Client
	bucket string
}

// NewAvatarStore creates an avatar store on the initialized MinIO client.
func NewAvatarStore() *AvatarStore {
	return &AvatarStore{client: minioClient, bucket: config.Get().MinioBucket}
}

// Put uploads an avatar object and returns its object name.
func (s *AvatarStore) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("MinIO client not initialized")
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar %s: %w", objectName, err)
	}
	return objectName, nil
}

// Remove deletes an avatar object.
func (s *AvatarStore) Remove(ctx context.Context, objectName string) error {
	if s.client == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove avatar %s: %w", objectName, err)
	}
	return nil
}

// ObjectInfo describes a stored avatar.
type ObjectInfo struct {
	Name         string
	LastModified time.Time
}

// List returns every avatar object in the bucket.
func (s *AvatarStore) List(ctx context.Context) ([]ObjectInfo, error) {
	if s.client == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list avatars: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{Name: obj.Key, LastModified: obj.LastModified})
	}
	return objects, nil
}
