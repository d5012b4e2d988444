package storage

import (
	"context"
	"io"
	"path"
	"strings"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/iliyamo/college-housing/internal/config"
)

// Cloudinary uploads objects to a Cloudinary account.
type Cloudinary struct {
	cld    *cld.Cloudinary
	folder string
}

// NewCloudinary reads credentials from cfg.CloudinaryURL, falling back to
// the CLOUDINARY_URL environment variable the SDK understands natively.
func NewCloudinary(cfg config.StorageConfig) (*Cloudinary, error) {
	var (
		c   *cld.Cloudinary
		err error
	)
	if cfg.CloudinaryURL != "" {
		c, err = cld.NewFromURL(cfg.CloudinaryURL)
	} else {
		c, err = cld.New()
	}
	if err != nil {
		return nil, err
	}
	return &Cloudinary{cld: c, folder: cfg.Folder}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, folder, name string, r io.Reader) (string, error) {
	obj := objectName(name)
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       path.Join(c.folder, folder),
		PublicID:     strings.TrimSuffix(obj, path.Ext(obj)),
		ResourceType: "auto", // documents may be PDFs
	})
	if err != nil {
		return "", err
	}
	return res.SecureURL, nil
}
