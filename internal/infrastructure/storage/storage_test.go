package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/circuitbreaker"
)

var pdf = application.Upload{
	Filename:    "transcript.pdf",
	ContentType: "application/pdf",
	Data:        []byte("%PDF-1.4 test"),
}

func TestUploadPolicy_Validate(t *testing.T) {
	policy := UploadPolicy{
		AllowedContentTypes: []string{"application/pdf", "image/png"},
		MaxFileBytes:        32,
	}

	tests := []struct {
		name    string
		file    application.Upload
		wantErr bool
	}{
		{"allowed pdf", pdf, false},
		{"content type parameters ignored", application.Upload{ContentType: "application/PDF; charset=binary", Data: []byte("x")}, false},
		{"sniffed png", application.Upload{Data: []byte("\x89PNG\r\n\x1a\n0000")}, false},
		{"disallowed type", application.Upload{ContentType: "text/plain", Data: []byte("hello")}, true},
		{"too large", application.Upload{ContentType: "application/pdf", Data: make([]byte, 33)}, true},
		{"empty", application.Upload{ContentType: "application/pdf"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(application.DocTranscript, tt.file)
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLocalStore_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/files/")
	require.NoError(t, err)
	ctx := context.Background()

	location, err := store.Save(ctx, "student/../1", application.DocTranscript, pdf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location, "http://localhost:8080/files/student____1/transcript-"))
	assert.True(t, strings.HasSuffix(location, ".pdf"))

	rel := strings.TrimPrefix(location, "http://localhost:8080/files/")
	data, err := os.ReadFile(filepath.Join(store.Dir(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, pdf.Data, data)

	require.NoError(t, store.Delete(ctx, location))
	_, err = os.Stat(filepath.Join(store.Dir(), filepath.FromSlash(rel)))
	assert.True(t, os.IsNotExist(err))

	// Missing files and foreign URLs are not errors.
	assert.NoError(t, store.Delete(ctx, location))
	assert.NoError(t, store.Delete(ctx, "https://elsewhere.example/file.pdf"))
}

func TestLocalStore_DeleteStaysInsideDirectory(t *testing.T) {
	parent := t.TempDir()
	outside := filepath.Join(parent, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o600))

	store, err := NewLocalStore(filepath.Join(parent, "docs"), "http://h/files")
	require.NoError(t, err)

	_ = store.Delete(context.Background(), "http://h/files/../secret.txt")
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestParseCloudinaryURL(t *testing.T) {
	tests := []struct {
		url          string
		resourceType string
		publicID     string
		wantErr      bool
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1712345/admissions-hub/documents/u1/transcript-abc.pdf", "image", "admissions-hub/documents/u1/transcript-abc", false},
		{"https://res.cloudinary.com/demo/raw/upload/v1/docs/resume_cv-x.docx", "raw", "docs/resume_cv-x.docx", false},
		{"https://res.cloudinary.com/demo/image/upload/folder/file.png", "image", "folder/file", false},
		{"https://example.com/files/a.pdf", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			rt, id, err := ParseCloudinaryURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.resourceType, rt)
			assert.Equal(t, tt.publicID, id)
		})
	}
}

type fakeCloudinary struct {
	uploads   []uploader.UploadParams
	destroyed []uploader.DestroyParams
	failWith  error
}

func (f *fakeCloudinary) Upload(_ context.Context, _ interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.uploads = append(f.uploads, params)
	return &uploader.UploadResult{
		SecureURL: "https://res.cloudinary.com/demo/image/upload/v1/" + params.Folder + "/" + params.PublicID + ".pdf",
		PublicID:  params.Folder + "/" + params.PublicID,
	}, nil
}

func (f *fakeCloudinary) Destroy(_ context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyed = append(f.destroyed, params)
	return &uploader.DestroyResult{Result: "ok"}, nil
}

func TestCloudinaryStore(t *testing.T) {
	api := &fakeCloudinary{}
	store := NewCloudinaryStoreWithAPI(api, "/apps/")
	ctx := context.Background()

	location, err := store.Save(ctx, "student-1", application.DocResumeCV, pdf)
	require.NoError(t, err)
	require.Len(t, api.uploads, 1)
	assert.Equal(t, "apps/student-1", api.uploads[0].Folder)
	assert.True(t, strings.HasPrefix(api.uploads[0].PublicID, "resume_cv-"))

	require.NoError(t, store.Delete(ctx, location))
	require.Len(t, api.destroyed, 1)
	assert.Equal(t, api.uploads[0].Folder+"/"+api.uploads[0].PublicID, api.destroyed[0].PublicID)
	assert.Equal(t, "image", api.destroyed[0].ResourceType)

	api.failWith = errors.New("quota exceeded")
	_, err = store.Save(ctx, "student-1", application.DocResumeCV, pdf)
	assert.Error(t, err)
}

type slowStore struct{}

func (slowStore) Save(ctx context.Context, _ shared.UserID, _ application.DocumentKey, _ application.Upload) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowStore) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	var base application.FileStore = slowStore{}
	assert.Equal(t, base, WithTimeout(base, 0))

	store := WithTimeout(base, 10*time.Millisecond)
	_, err := store.Save(context.Background(), "s-1", application.DocTranscript, application.Upload{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, store.Delete(context.Background(), "x"), context.DeadlineExceeded)
}

type flakyStore struct{ calls int }

func (s *flakyStore) Save(context.Context, shared.UserID, application.DocumentKey, application.Upload) (string, error) {
	s.calls++
	return "", errors.New("cdn unavailable")
}

func (s *flakyStore) Delete(context.Context, string) error {
	s.calls++
	return errors.New("cdn unavailable")
}

func TestWithBreaker(t *testing.T) {
	base := &flakyStore{}
	store := WithBreaker(base, circuitbreaker.New("cdn", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithCoolDown(time.Hour)))
	ctx := context.Background()

	_, err := store.Save(ctx, "s-1", application.DocTranscript, pdf)
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrServiceUnavailable)

	_, err = store.Save(ctx, "s-1", application.DocTranscript, pdf)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.ErrorIs(t, store.Delete(ctx, "x"), shared.ErrServiceUnavailable)
	assert.Equal(t, 1, base.calls)
}
