package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	uploadTimeout  = 10 * time.Minute
)

var imageFormats = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"webp": true, "bmp": true, "svg": true, "avif": true,
}

var videoFormats = map[string]bool{
	"mp4": true, "webm": true, "mov": true, "avi": true,
	"mkv": true, "m4v": true,
}

// S3Store keeps gallery assets in an S3-compatible bucket. The remote
// store's kind partitioning is emulated with a key layout of
// <folder>/<kind>/<name>.<format>; the public ID is the key without the
// format suffix, and the listing cursor is the bucket's continuation
// token, round-tripped opaquely.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
	logger  *logging.Logger
}

func NewS3Store(conf *Config, logger *logging.Logger) (*S3Store, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if conf.AccessKeyID == "" || conf.SecretAccessKey == "" || conf.Bucket == "" {
		return nil, fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required")
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	client := s3.New(s3.Options{
		BaseEndpoint:     aws.String(conf.Endpoint),
		Region:           conf.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	})

	st := &S3Store{
		client:  client,
		bucket:  conf.Bucket,
		baseURL: strings.TrimRight(conf.PublicBaseURL, "/"),
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := st.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return st, nil
}

func (h *S3Store) Upload(ctx context.Context, file io.Reader, filename, folder string) (*domain.UploadResult, error) {
	if file == nil {
		return nil, &domain.UploadError{Reason: "no file provided"}
	}

	format := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	kind := kindForFormat(format)
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	if base == "" || base == "." {
		base = "file"
	}

	// Store-assigned identity: a short unique suffix keeps repeated
	// uploads of the same filename from clobbering each other.
	publicID := fmt.Sprintf("%s/%s/%s_%s", folder, kind, base, uuid.NewString()[:8])
	key := publicID
	if format != "" {
		key += "." + format
	}

	uctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := h.client.PutObject(uctx, &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return nil, &domain.UploadError{Reason: "failed to upload file", Err: err}
	}

	return &domain.UploadResult{
		URL:          h.objectURL(key),
		PublicID:     publicID,
		ResourceType: kind,
		Format:       format,
	}, nil
}

func (h *S3Store) List(ctx context.Context, params ListParams) (*Page, error) {
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultPageSize
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(h.bucket),
		Prefix:  aws.String(fmt.Sprintf("%s/%s/", params.Prefix, params.Kind)),
		MaxKeys: aws.Int32(int32(maxResults)),
	}
	if params.Cursor != "" {
		input.ContinuationToken = aws.String(params.Cursor)
	}

	resp, err := h.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, &domain.TransportError{Op: fmt.Sprintf("list %s assets", params.Kind), Err: err}
	}

	page := &Page{}
	for _, obj := range resp.Contents {
		key := aws.ToString(obj.Key)
		format := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
		rec := domain.FileRecord{
			URL:          h.objectURL(key),
			PublicID:     strings.TrimSuffix(key, path.Ext(key)),
			CreatedAt:    aws.ToTime(obj.LastModified),
			Format:       format,
			SizeBytes:    aws.ToInt64(obj.Size),
			ResourceType: params.Kind,
			DeliveryType: "upload",
		}
		rec.Derive()
		page.Records = append(page.Records, rec)
	}
	if aws.ToBool(resp.IsTruncated) {
		page.NextCursor = aws.ToString(resp.NextContinuationToken)
	}
	return page, nil
}

func (h *S3Store) Delete(ctx context.Context, publicID string, kind domain.ResourceKind) bool {
	dctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	key, err := h.resolveKey(dctx, publicID)
	if err != nil {
		h.logger.Errorf("delete %s: %v", publicID, err)
		return false
	}
	if key == "" {
		h.logger.Warningf("delete %s: object not found", publicID)
		return false
	}

	if _, err := h.client.DeleteObject(dctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	}); err != nil {
		h.logger.Errorf("delete %s: %v", publicID, err)
		return false
	}
	return true
}

func (h *S3Store) Rename(ctx context.Context, fromPublicID, toPublicID string, kind domain.ResourceKind) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	srcKey, err := h.resolveKey(rctx, fromPublicID)
	if err != nil {
		return "", &domain.TransportError{Op: fmt.Sprintf("rename %s", fromPublicID), Err: err}
	}
	if srcKey == "" {
		return "", fmt.Errorf("rename %s: object not found", fromPublicID)
	}

	dstKey := toPublicID + path.Ext(srcKey)
	exists, err := h.objectExists(rctx, dstKey)
	if err != nil {
		return "", &domain.TransportError{Op: fmt.Sprintf("rename %s", fromPublicID), Err: err}
	}
	if exists {
		return "", &domain.RenameConflictError{Target: toPublicID}
	}

	_, err = h.client.CopyObject(rctx, &s3.CopyObjectInput{
		Bucket:     aws.String(h.bucket),
		CopySource: aws.String(h.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return "", &domain.TransportError{Op: fmt.Sprintf("rename %s", fromPublicID), Err: err}
	}

	if _, err := h.client.DeleteObject(rctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(srcKey),
	}); err != nil {
		// The copy landed; losing the source delete leaves a duplicate,
		// which the next refetch will show. Report it anyway.
		return "", &domain.TransportError{Op: fmt.Sprintf("rename %s", fromPublicID), Err: err}
	}

	return toPublicID, nil
}

// resolveKey maps a public ID back to the stored object key. The key is
// the public ID plus an unknown format suffix, so an exact match is
// tried first and a prefix listing second.
func (h *S3Store) resolveKey(ctx context.Context, publicID string) (string, error) {
	exists, err := h.objectExists(ctx, publicID)
	if err != nil {
		return "", err
	}
	if exists {
		return publicID, nil
	}

	resp, err := h.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(h.bucket),
		Prefix:  aws.String(publicID + "."),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Contents) == 0 {
		return "", nil
	}
	return aws.ToString(resp.Contents[0].Key), nil
}

func (h *S3Store) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (h *S3Store) objectURL(key string) string {
	if h.baseURL != "" {
		return h.baseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.storage.yandexcloud.net/%s", h.bucket, key)
}

func kindForFormat(format string) domain.ResourceKind {
	switch {
	case imageFormats[format]:
		return domain.ResourceImage
	case videoFormats[format]:
		return domain.ResourceVideo
	default:
		return domain.ResourceRaw
	}
}
