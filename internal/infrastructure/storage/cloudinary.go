package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// CloudinaryAPI is the part of the Cloudinary upload API the store uses.
type CloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStore uploads documents to Cloudinary.
type CloudinaryStore struct {
	api    CloudinaryAPI
	folder string
}

var _ application.FileStore = (*CloudinaryStore)(nil)

// NewCloudinaryStore creates a store from a cloudinary:// URL.
func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	if cloudinaryURL == "" {
		return nil, errors.New("storage: CLOUDINARY_URL is required")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("storage: cloudinary: %w", err)
	}
	return NewCloudinaryStoreWithAPI(&cld.Upload, folder), nil
}

// NewCloudinaryStoreWithAPI wraps an existing upload API.
func NewCloudinaryStoreWithAPI(api CloudinaryAPI, folder string) *CloudinaryStore {
	if folder == "" {
		folder = "admissions-hub/documents"
	}
	return &CloudinaryStore{api: api, folder: strings.Trim(folder, "/")}
}

// Save uploads the file into <folder>/<owner> and returns its secure URL.
func (s *CloudinaryStore) Save(ctx context.Context, owner shared.UserID, key application.DocumentKey, file application.Upload) (string, error) {
	res, err := s.api.Upload(ctx, bytes.NewReader(file.Data), uploader.UploadParams{
		Folder:         s.folder + "/" + sanitize(owner.String()),
		PublicID:       fmt.Sprintf("%s-%s", key, uuid.NewString()),
		ResourceType:   "auto",
		UniqueFilename: boolPtr(false),
		Overwrite:      boolPtr(false),
	})
	if err != nil {
		return "", fmt.Errorf("storage: cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("storage: cloudinary upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// Delete destroys the asset behind a URL returned by Save.
func (s *CloudinaryStore) Delete(ctx context.Context, location string) error {
	resourceType, publicID, err := ParseCloudinaryURL(location)
	if err != nil {
		return err
	}

	res, err := s.api.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
		Invalidate:   boolPtr(true),
	})
	if err != nil {
		return fmt.Errorf("storage: cloudinary destroy: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("storage: cloudinary destroy: %s", res.Error.Message)
	}
	// "not found" means the asset is already gone.
	return nil
}

// ParseCloudinaryURL extracts the resource type and public id from a delivery URL
// of the form https://res.cloudinary.com/<cloud>/<type>/upload/[v<ver>/]<public_id>[.<ext>].
func ParseCloudinaryURL(location string) (resourceType, publicID string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("storage: parse %q: %w", location, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, p := range parts {
		if p == "upload" && i >= 2 {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(parts) {
		return "", "", fmt.Errorf("storage: %q is not a cloudinary upload url", location)
	}

	resourceType = parts[idx-1]
	rest := parts[idx+1:]
	if len(rest) > 1 && isVersion(rest[0]) {
		rest = rest[1:]
	}
	publicID = strings.Join(rest, "/")
	// Raw assets keep their extension as part of the public id.
	if resourceType != "raw" {
		publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	}
	return resourceType, publicID, nil
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func boolPtr(b bool) *bool {
	return &b
}
