package util

import (
	"context"
	"time"

	"github.com/cloudinary/cloudinary-go"
	"github.com/cloudinary/cloudinary-go/api/uploader"
	"github.com/pkg/errors"

	"khoomi-api-io/taxonomy/config"
)

// MediaUploader stores category images and returns their public URL.
type MediaUploader interface {
	Upload(ctx context.Context, file any, publicID string) (string, error)
	Remove(ctx context.Context, publicID string) error
}

type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryUploader(cfg config.CloudinaryConfig) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, errors.Wrap(err, "init cloudinary")
	}
	return &CloudinaryUploader{cld: cld, folder: cfg.Folder}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, file any, publicID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 40*time.Second)
	defer cancel()

	res, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{Folder: u.folder, PublicID: publicID})
	if err != nil {
		return "", errors.Wrap(err, "upload image")
	}
	if res.Error.Message != "" {
		return "", errors.New(res.Error.Message)
	}
	return res.SecureURL, nil
}

func (u *CloudinaryUploader) Remove(ctx context.Context, publicID string) error {
	ctx, cancel := context.WithTimeout(ctx, 40*time.Second)
	defer cancel()

	if _, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: u.folder + "/" + publicID}); err != nil {
		return errors.Wrap(err, "remove image")
	}
	return nil
}
