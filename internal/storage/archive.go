package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive keeps an immutable JSON snapshot of every notice sent, in object
// storage, for compliance review.
type Archive struct {
	client *minio.Client
	bucket string
}

func NewArchive(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &Archive{client: client, bucket: bucket}, nil
}

func (a *Archive) PutNotice(ctx context.Context, candidateID string, step int, payload []byte) (string, error) {
	objectKey := path.Join("notices", candidateID, fmt.Sprintf("step-%d-%s.json", step, time.Now().UTC().Format("20060102T150405")))
	_, err := a.client.PutObject(ctx, a.bucket, objectKey, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

func (a *Archive) GetNotice(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read notice object: %w", err)
	}
	return data.Bytes(), nil
}
