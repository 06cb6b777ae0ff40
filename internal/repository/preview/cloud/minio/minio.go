package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"tryon-web/internal/config"
	"tryon-web/internal/domain"
	"tryon-web/internal/repository/preview"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const objectPrefix = "previews/"

type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// PreviewRepository stores previews as objects in a MinIO bucket. It only
// ever deletes objects it created, so instances may share a bucket.
type PreviewRepository struct {
	client  objectClient
	bucket  string
	retries retry.Strategy
	logger  *zlog.Zerolog

	mu    sync.Mutex
	owned map[domain.PreviewRef]struct{}
}

func NewMinIORepository(cfg *config.Config, retries retry.Strategy, logger *zlog.Zerolog) (*PreviewRepository, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	repo := newRepository(client, cfg.MinIO.Bucket, retries, logger)

	if err := retry.Do(func() error {
		return repo.ensureBucket(context.Background())
	}, retries); err != nil {
		return nil, fmt.Errorf("failed to prepare bucket %s: %w", cfg.MinIO.Bucket, err)
	}

	return repo, nil
}

func newRepository(client objectClient, bucket string, retries retry.Strategy, logger *zlog.Zerolog) *PreviewRepository {
	return &PreviewRepository{
		client:  client,
		bucket:  bucket,
		retries: retries,
		logger:  logger,
		owned:   make(map[domain.PreviewRef]struct{}),
	}
}

func (r *PreviewRepository) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
		return err
	}
	r.logger.Info().Str("bucket", r.bucket).Msg("Created preview bucket")
	return nil
}

func (r *PreviewRepository) Put(ctx context.Context, file *domain.File) (domain.PreviewRef, error) {
	if file == nil || len(file.Data) == 0 {
		return "", preview.ErrEmptyPreview
	}

	ref := domain.PreviewRef(uuid.New().String())
	err := retry.DoContext(ctx, r.retries, func() error {
		_, err := r.client.PutObject(ctx, r.bucket, objectName(ref), bytes.NewReader(file.Data), int64(len(file.Data)),
			minio.PutObjectOptions{ContentType: file.MimeType})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: put preview: %v", preview.ErrStorageError, err)
	}

	r.mu.Lock()
	r.owned[ref] = struct{}{}
	r.mu.Unlock()

	return ref, nil
}

func (r *PreviewRepository) Get(ctx context.Context, ref domain.PreviewRef) (*domain.Preview, []byte, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, objectName(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, r.mapError(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, nil, r.mapError(err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read preview: %v", preview.ErrStorageError, err)
	}

	return &domain.Preview{
		Ref:       ref,
		MimeType:  info.ContentType,
		Size:      info.Size,
		CreatedAt: info.LastModified,
	}, data, nil
}

// Release removes the object. RemoveObject succeeds for missing keys, so
// the object is checked first to keep double releases visible.
func (r *PreviewRepository) Release(ctx context.Context, ref domain.PreviewRef) error {
	if _, err := r.client.StatObject(ctx, r.bucket, objectName(ref), minio.StatObjectOptions{}); err != nil {
		return r.mapError(err)
	}

	if err := r.remove(ctx, ref); err != nil {
		return fmt.Errorf("%w: remove preview: %v", preview.ErrStorageError, err)
	}

	r.mu.Lock()
	delete(r.owned, ref)
	r.mu.Unlock()
	return nil
}

// Close removes the previews this repository created and has not released.
func (r *PreviewRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r.mu.Lock()
	refs := make([]domain.PreviewRef, 0, len(r.owned))
	for ref := range r.owned {
		refs = append(refs, ref)
	}
	r.owned = make(map[domain.PreviewRef]struct{})
	r.mu.Unlock()

	var failed int
	for _, ref := range refs {
		if err := r.remove(ctx, ref); err != nil {
			failed++
			r.logger.Warn().Err(err).Str("preview", string(ref)).Msg("Failed to remove preview on shutdown")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d previews left in bucket %s", preview.ErrStorageError, failed, r.bucket)
	}
	return nil
}

func (r *PreviewRepository) remove(ctx context.Context, ref domain.PreviewRef) error {
	return retry.DoContext(ctx, r.retries, func() error {
		return r.client.RemoveObject(ctx, r.bucket, objectName(ref), minio.RemoveObjectOptions{})
	})
}

func (r *PreviewRepository) mapError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return preview.ErrPreviewNotFound
	}
	return fmt.Errorf("%w: %v", preview.ErrStorageError, err)
}

func objectName(ref domain.PreviewRef) string {
	return objectPrefix + string(ref)
}
