package command

import (
	"context"
	"fmt"

	"github.com/admissions-hub/admissions-hub/config"
	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
	"github.com/admissions-hub/admissions-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPLOAD DOCUMENTS COMMAND
// Files are written to storage before the record is saved. If the save fails
// the new files are removed again; replaced files are removed only after commit.
// ══════════════════════════════════════════════════════════════════════════════

// UploadDocumentsCommand contains the files keyed by document slot.
type UploadDocumentsCommand struct {
	Caller application.Caller
	Files  map[application.DocumentKey]application.Upload
}

// Validate validates the command.
func (c UploadDocumentsCommand) Validate() error {
	if c.Caller == nil {
		return shared.NewDomainError("document", "Upload", shared.ErrUnauthorized, "caller is required")
	}
	if _, ok := c.Caller.(application.StudentCaller); !ok {
		return shared.NewDomainError("document", "Upload", shared.ErrForbidden, "only students can upload documents")
	}
	return nil
}

// UploadValidator checks a single file before it is stored.
type UploadValidator interface {
	Validate(key application.DocumentKey, file application.Upload) error
}

// UploadDocumentsHandler handles UploadDocumentsCommand.
type UploadDocumentsHandler struct {
	deps      Deps
	store     application.FileStore
	validator UploadValidator
	flags     *config.FeatureFlags
	retrier   *retry.Retrier
}

// NewUploadDocumentsHandler creates a new UploadDocumentsHandler.
// validator and flags may be nil; without flags superseded files are always deleted.
func NewUploadDocumentsHandler(
	deps Deps,
	store application.FileStore,
	validator UploadValidator,
	flags *config.FeatureFlags,
) *UploadDocumentsHandler {
	return &UploadDocumentsHandler{
		deps:      deps.withDefaults(),
		store:     store,
		validator: validator,
		flags:     flags,
		retrier:   retry.StorageRetrier(),
	}
}

// Handle executes the upload.
func (h *UploadDocumentsHandler) Handle(ctx context.Context, cmd UploadDocumentsCommand) (*application.Application, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	app, err := h.deps.Repo.GetByOwner(ctx, cmd.Caller.UserID())
	if err != nil {
		return nil, err
	}

	keys := make([]application.DocumentKey, 0, len(cmd.Files))
	for _, key := range application.AllDocumentKeys() {
		if _, ok := cmd.Files[key]; ok {
			keys = append(keys, key)
		}
	}
	// Unknown keys are reported by CheckUpload.
	for key := range cmd.Files {
		if !key.IsValid() {
			keys = append(keys, key)
		}
	}
	if err := h.deps.Machine.CheckUpload(cmd.Caller, app, keys); err != nil {
		return nil, err
	}

	if h.validator != nil {
		for _, key := range keys {
			if err := h.validator.Validate(key, cmd.Files[key]); err != nil {
				return nil, err
			}
		}
	}

	locations := make(map[application.DocumentKey]string, len(keys))
	for _, key := range keys {
		location, err := h.store.Save(ctx, app.OwnerID, key, cmd.Files[key])
		if err != nil {
			h.cleanup(ctx, app.ID, values(locations))
			return nil, fmt.Errorf("upload_documents: store %s: %w", key, err)
		}
		locations[key] = location
	}

	expected := app.Version
	superseded, err := h.deps.Machine.UploadDocuments(cmd.Caller, app, locations)
	if err != nil {
		h.cleanup(ctx, app.ID, values(locations))
		return nil, err
	}
	if err := h.deps.save(ctx, "upload_documents", app, expected); err != nil {
		h.cleanup(ctx, app.ID, values(locations))
		return nil, err
	}

	if len(superseded) > 0 && h.deleteSuperseded() {
		h.cleanup(ctx, app.ID, superseded)
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	h.deps.Logger.Info("documents uploaded",
		logger.ApplicationID(app.ID),
		logger.OwnerID(app.OwnerID.String()),
		logger.Any("documents", names),
	)
	h.deps.publish(shared.NewDocumentsUploadedEvent(app.ID, app.OwnerID.String(), app.AssignedAgent.String(), names))

	return app.WithoutInternalNotes(), nil
}

func (h *UploadDocumentsHandler) deleteSuperseded() bool {
	return h.flags == nil || h.flags.IsEnabled(config.FeatureStorageDeleteSuperseded, nil)
}

// cleanup removes stored files. It runs detached from the request context so
// a cancelled request still releases what it wrote.
func (h *UploadDocumentsHandler) cleanup(ctx context.Context, appID string, locations []string) {
	ctx = context.WithoutCancel(ctx)
	for _, location := range locations {
		loc := location
		err := h.retrier.Do(ctx, func(ctx context.Context) error {
			return h.store.Delete(ctx, loc)
		})
		if err != nil {
			h.deps.Logger.Warn("failed to delete stored file",
				logger.ApplicationID(appID),
				logger.String("location", loc),
				logger.Err(err),
			)
		}
	}
}

func values(m map[application.DocumentKey]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
