package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	// MaxThumbnailSize is the maximum allowed thumbnail upload size (10MB).
	MaxThumbnailSize = 10 * 1024 * 1024
	// MaxVideoSize is the maximum allowed main video upload size (500MB).
	MaxVideoSize = 500 * 1024 * 1024
	// MaxSfxSize is the maximum allowed sound-effect upload size (20MB).
	MaxSfxSize = 20 * 1024 * 1024

	// FolderThumbnails is the S3 prefix for concept thumbnails.
	FolderThumbnails = "thumbnails"
	// FolderVideos is the S3 prefix for main videos.
	FolderVideos = "videos"
	// FolderSfx is the S3 prefix for sound-effect clips.
	FolderSfx = "sfx"
)

// Allowed MIME types per upload slot. Extensions are a fallback when the
// client sends no Content-Type.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
	}
	AllowedVideoTypes = map[string]string{
		"video/mp4":       ".mp4",
		"video/quicktime": ".mov",
		"video/webm":      ".webm",
	}
	AllowedAudioTypes = map[string]string{
		"audio/mpeg": ".mp3",
		"audio/mp3":  ".mp3",
		"audio/wav":  ".wav",
		"audio/ogg":  ".ogg",
	}
	extensionTypes = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".mp4":  "video/mp4",
		".mov":  "video/quicktime",
		".webm": "video/webm",
		".mp3":  "audio/mpeg",
		".wav":  "audio/wav",
		".ogg":  "audio/ogg",
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	MediaBucket     string
}

// S3 uploads media objects to the configured bucket and returns public URLs.
// One network transfer per Upload call; no retry and no dedup here — callers
// own retry and compensation policy.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
	} else if logger != nil {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ValidateFileType returns true if the content type or filename extension is
// in the given allow-list.
func ValidateFileType(allowed map[string]string, contentType, filename string) bool {
	if contentType != "" {
		if _, ok := allowed[strings.ToLower(contentType)]; ok {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := extensionTypes[ext]; ok {
		if _, ok := allowed[ct]; ok {
			return true
		}
	}
	return false
}

// ContentTypeForFilename returns the MIME type for a media filename extension.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ThumbnailKey returns the S3 object key for a thumbnail: thumbnails/{publish_id}/{filename}.
func ThumbnailKey(publishID, filename string) string {
	return path.Join(FolderThumbnails, publishID, path.Base(filename))
}

// VideoKey returns the S3 object key for a main video: videos/{publish_id}/{filename}.
func VideoKey(publishID, filename string) string {
	return path.Join(FolderVideos, publishID, path.Base(filename))
}

// SfxKey returns the S3 object key for a sound effect: sfx/{publish_id}/{filename}.
func SfxKey(publishID, filename string) string {
	return path.Join(FolderSfx, publishID, path.Base(filename))
}

// Bucket returns the media bucket name.
func (s *S3) Bucket() string { return s.cfg.MediaBucket }

// PublicObjectURL returns the public URL for an object (no signing; the media bucket is public-read).
func (s *S3) PublicObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.MediaBucket, s.cfg.Region, key)
}

// Upload streams a reader to the media bucket and returns the public URL.
// Objects are stored public-read so the returned URL dereferences without signing.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error) {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.MediaBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
		ACL:           types.ObjectCannedACLPublicRead,
	}
	_, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return s.PublicObjectURL(key), nil
}

// DeleteObject removes an object from the media bucket. Used by the orphan
// cleanup worker when a later pipeline step failed.
func (s *S3) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.MediaBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
