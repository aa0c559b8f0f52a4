// Package storage keeps uploaded application documents. Both drivers return
// an opaque URL that is stored in the document slot and later passed back to Delete.
package storage

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// UploadPolicy restricts what students may upload.
type UploadPolicy struct {
	AllowedContentTypes []string
	MaxFileBytes        int64
}

// Validate checks one file against the policy.
func (p UploadPolicy) Validate(key application.DocumentKey, file application.Upload) error {
	if file.Size() == 0 {
		return shared.NewDomainError("document", "Upload", shared.ErrValidation,
			fmt.Sprintf("%s: file is empty", key))
	}
	if p.MaxFileBytes > 0 && file.Size() > p.MaxFileBytes {
		return shared.NewDomainError("document", "Upload", shared.ErrValidation,
			fmt.Sprintf("%s: file exceeds %d bytes", key, p.MaxFileBytes))
	}

	contentType := ContentTypeOf(file)
	if len(p.AllowedContentTypes) > 0 && !p.allows(contentType) {
		return shared.NewDomainError("document", "Upload", shared.ErrValidation,
			fmt.Sprintf("%s: content type %s is not allowed", key, contentType))
	}
	return nil
}

func (p UploadPolicy) allows(contentType string) bool {
	for _, allowed := range p.AllowedContentTypes {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

// ContentTypeOf returns the declared media type without parameters,
// sniffing the content when none was declared.
func ContentTypeOf(file application.Upload) string {
	declared := strings.TrimSpace(file.ContentType)
	if declared == "" || declared == "application/octet-stream" {
		declared = http.DetectContentType(file.Data)
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(declared)
	}
	return strings.ToLower(mediaType)
}

// extensionOf picks a file extension for stored objects.
func extensionOf(file application.Upload) string {
	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if exts, err := mime.ExtensionsByType(ContentTypeOf(file)); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
