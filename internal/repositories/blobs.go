package repositories

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

// BlobRepository stores audio files and cover images in two object-store
// buckets. Audio keys are "{artistID}/{trackID}"; image keys come from
// [models.ImageTarget.Path].
type BlobRepository struct {
	client      *minio.Client
	musicBucket string
	coverBucket string
}

// NewBlobRepository connects to the object store and ensures both buckets
// exist.
func NewBlobRepository(ctx context.Context, cfg shared.MinioConfig) (*BlobRepository, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	for _, bucket := range []string{cfg.MusicBucket, cfg.CoverBucket} {
		ok, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket %q: %w", bucket, err)
		}
		if !ok {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create bucket %q: %w", bucket, err)
			}
		}
	}

	return &BlobRepository{
		client:      client,
		musicBucket: cfg.MusicBucket,
		coverBucket: cfg.CoverBucket,
	}, nil
}

func trackKey(artistID, trackID int64) string {
	return fmt.Sprintf("%d/%d", artistID, trackID)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// PutTrack uploads a track's audio file.
func (r *BlobRepository) PutTrack(ctx context.Context, artistID, trackID int64, data io.Reader, size int64, contentType string) error {
	_, err := r.client.PutObject(ctx, r.musicBucket, trackKey(artistID, trackID), data, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store track file: %w", err)
	}
	return nil
}

// StatTrack returns the stored size of a track's audio file.
func (r *BlobRepository) StatTrack(ctx context.Context, artistID, trackID int64) (models.FileStat, error) {
	info, err := r.client.StatObject(ctx, r.musicBucket, trackKey(artistID, trackID), minio.StatObjectOptions{})
	if isNoSuchKey(err) {
		return models.FileStat{}, fmt.Errorf("%w: track '%d'", shared.ErrMusicFileNotFound, trackID)
	}
	if err != nil {
		return models.FileStat{}, fmt.Errorf("failed to stat track file: %w", err)
	}
	return models.FileStat{Size: info.Size}, nil
}

// StreamTrack opens a reader over the byte range [start, end] of a track's
// audio file. The caller closes the reader.
func (r *BlobRepository) StreamTrack(ctx context.Context, artistID, trackID, start, end int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("failed to set byte range: %w", err)
	}

	obj, err := r.client.GetObject(ctx, r.musicBucket, trackKey(artistID, trackID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open track file: %w", err)
	}
	// GetObject is lazy; surface a missing key now rather than on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: track '%d'", shared.ErrMusicFileNotFound, trackID)
		}
		return nil, fmt.Errorf("failed to stat track file: %w", err)
	}
	return obj, nil
}

// DeleteTrack removes a track's audio file. Missing files fail with
// [shared.ErrMusicFileNotFound].
func (r *BlobRepository) DeleteTrack(ctx context.Context, artistID, trackID int64) error {
	key := trackKey(artistID, trackID)
	_, err := r.client.StatObject(ctx, r.musicBucket, key, minio.StatObjectOptions{})
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: track '%d'", shared.ErrMusicFileNotFound, trackID)
	}
	if err != nil {
		return fmt.Errorf("failed to stat track file: %w", err)
	}
	if err := r.client.RemoveObject(ctx, r.musicBucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete track file: %w", err)
	}
	return nil
}

// PutImage uploads a cover image for the given target.
func (r *BlobRepository) PutImage(ctx context.Context, target models.ImageTarget, data []byte, contentType string) error {
	_, err := r.client.PutObject(ctx, r.coverBucket, target.Path(), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store image: %w", err)
	}
	return nil
}

// GetImage reads a cover image back in full.
func (r *BlobRepository) GetImage(ctx context.Context, target models.ImageTarget) ([]byte, error) {
	obj, err := r.client.GetObject(ctx, r.coverBucket, target.Path(), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if isNoSuchKey(err) {
		return nil, fmt.Errorf("%w: %s", shared.ErrImageFileNotFound, target.Path())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// DeleteImage removes a cover image. Missing images fail with
// [shared.ErrImageFileNotFound].
func (r *BlobRepository) DeleteImage(ctx context.Context, target models.ImageTarget) error {
	_, err := r.client.StatObject(ctx, r.coverBucket, target.Path(), minio.StatObjectOptions{})
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", shared.ErrImageFileNotFound, target.Path())
	}
	if err != nil {
		return fmt.Errorf("failed to stat image: %w", err)
	}
	if err := r.client.RemoveObject(ctx, r.coverBucket, target.Path(), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
