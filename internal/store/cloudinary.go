package store

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
)

const pingTimeout = 30 * time.Second

// CloudinaryStore talks to the Cloudinary upload and admin APIs. Assets
// are partitioned by resource kind on the remote side, which is why
// List takes a single kind per call.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	logger *logging.Logger
}

func NewCloudinaryStore(conf *Config, logger *logging.Logger) (*CloudinaryStore, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	cld, err := cloudinary.NewFromParams(conf.CloudName, conf.APIKey, conf.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if _, err := cld.Admin.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to reach cloudinary: %w", err)
	}

	return &CloudinaryStore{cld: cld, logger: logger}, nil
}

func (c *CloudinaryStore) Upload(ctx context.Context, file io.Reader, filename, folder string) (*domain.UploadResult, error) {
	resp, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, &domain.UploadError{Reason: "store rejected the file", Err: err}
	}
	if resp.Error.Message != "" {
		return nil, &domain.UploadError{Reason: resp.Error.Message}
	}
	if resp.SecureURL == "" {
		return nil, &domain.UploadError{Reason: "upload succeeded but no URL returned"}
	}

	return &domain.UploadResult{
		URL:          resp.SecureURL,
		PublicID:     resp.PublicID,
		ResourceType: domain.ResourceKind(resp.ResourceType),
		Format:       resp.Format,
	}, nil
}

func (c *CloudinaryStore) List(ctx context.Context, params ListParams) (*Page, error) {
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultPageSize
	}

	resp, err := c.cld.Admin.Assets(ctx, admin.AssetsParams{
		AssetType:  api.AssetType(params.Kind),
		Prefix:     params.Prefix,
		MaxResults: maxResults,
		NextCursor: params.Cursor,
	})
	if err != nil {
		return nil, &domain.TransportError{Op: fmt.Sprintf("list %s assets", params.Kind), Err: err}
	}

	page := &Page{NextCursor: resp.NextCursor}
	for _, asset := range resp.Assets {
		rec := domain.FileRecord{
			URL:          asset.SecureURL,
			PublicID:     asset.PublicID,
			CreatedAt:    asset.CreatedAt,
			Format:       asset.Format,
			SizeBytes:    int64(asset.Bytes),
			ResourceType: domain.ResourceKind(asset.AssetType),
			DeliveryType: asset.Type,
		}
		rec.Derive()
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

func (c *CloudinaryStore) Delete(ctx context.Context, publicID string, kind domain.ResourceKind) bool {
	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: string(kind),
	})
	if err != nil {
		c.logger.Errorf("delete %s: %v", publicID, err)
		return false
	}
	if resp.Result != "ok" {
		c.logger.Warningf("delete %s: store answered %q", publicID, resp.Result)
		return false
	}
	return true
}

func (c *CloudinaryStore) Rename(ctx context.Context, fromPublicID, toPublicID string, kind domain.ResourceKind) (string, error) {
	resp, err := c.cld.Upload.Rename(ctx, uploader.RenameParams{
		FromPublicID: fromPublicID,
		ToPublicID:   toPublicID,
		ResourceType: string(kind),
	})
	if err != nil {
		return "", &domain.TransportError{Op: fmt.Sprintf("rename %s", fromPublicID), Err: err}
	}
	if resp.Error != nil {
		msg := fmt.Sprintf("%v", resp.Error)
		if errMap, ok := resp.Error.(map[string]interface{}); ok {
			if m, ok := errMap["message"].(string); ok {
				msg = m
			}
		}
		if strings.Contains(msg, "already exists") {
			return "", &domain.RenameConflictError{Target: toPublicID}
		}
		return "", fmt.Errorf("rename %s: %s", fromPublicID, msg)
	}
	return resp.PublicID, nil
}
