package attachment

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"

	"leakdesk/internal/apperr"
)

type uploadFunc func(ctx context.Context, r io.Reader, p uploader.UploadParams) (string, error)

// Cloudinary stores photos under <folder>/<STORE NAME>.
type Cloudinary struct {
	folder string
	upload uploadFunc
	log    zerolog.Logger
}

func NewCloudinary(cloudName, apiKey, apiSecret, folder string, log zerolog.Logger) (*Cloudinary, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("cloudinary configuration is missing")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	up := func(ctx context.Context, r io.Reader, p uploader.UploadParams) (string, error) {
		res, err := cld.Upload.Upload(ctx, r, p)
		if err != nil {
			return "", err
		}
		if res.Error.Message != "" {
			return "", errors.New(res.Error.Message)
		}
		return res.SecureURL, nil
	}
	return &Cloudinary{folder: folder, upload: up, log: log.With().Str("component", "attachment").Logger()}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, payload, group, name string) string {
	data, err := DecodeDataURL(payload)
	if err != nil {
		c.log.Warn().Err(err).Str("name", name).Msg("photo payload rejected")
		return apperr.UploadFailed
	}
	overwrite := true
	url, err := c.upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     name,
		Folder:       path.Join(c.folder, group),
		Overwrite:    &overwrite,
		ResourceType: "image",
	})
	if err != nil || url == "" {
		c.log.Error().Err(err).Str("group", group).Str("name", name).Msg("photo upload failed")
		return apperr.UploadFailed
	}
	c.log.Debug().Str("group", group).Str("url", url).Msg("photo uploaded")
	return url
}

// DecodeDataURL returns the bytes of a base64 data URL.
func DecodeDataURL(v string) ([]byte, error) {
	meta, body, ok := strings.Cut(v, ",")
	if !ok || !strings.HasPrefix(meta, "data:") {
		return nil, fmt.Errorf("not a data url")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data url is not base64 encoded")
	}
	b, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("data url is empty")
	}
	return b, nil
}
