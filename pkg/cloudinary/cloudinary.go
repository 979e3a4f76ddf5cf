package cloudinary

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client hosts rendered QR images so clients can link to them instead of
// embedding base64.
type Client interface {
	UploadPNG(ctx context.Context, png []byte, publicID string) (url string, err error)
}

// Delivery params for QR codes: lossless PNG, never resized by quality heuristics.
const (
	QRFormat = "png"
	QRWidth  = 320
)

// BuildQRImageURL returns the delivery URL for an uploaded QR image.
func BuildQRImageURL(cloudName, folder, publicID string) string {
	path := publicID
	if folder != "" {
		path = folder + "/" + publicID
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/w_%d/%s.%s", cloudName, QRWidth, path, QRFormat)
}

type clientImpl struct {
	cloudName string
	folder    string
	uploader  *uploader.API
}

// UploadPNG uploads png under the configured folder using publicID (the intent md5).
func (c *clientImpl) UploadPNG(ctx context.Context, png []byte, publicID string) (string, error) {
	result, err := c.uploader.Upload(ctx, bytes.NewReader(png), uploader.UploadParams{
		Folder:       c.folder,
		PublicID:     publicID,
		ResourceType: "image",
		Format:       QRFormat,
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", errors.New(result.Error.Message)
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	return BuildQRImageURL(c.cloudName, c.folder, publicID), nil
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret, folder string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{
		cloudName: cloudName,
		folder:    folder,
		uploader:  up,
	}, nil
}
