// Package media validates uploaded images, hands them to the file storage and keeps track of their uploaders.
package media

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
)

// Kinds
const (
	KindPosts   = "posts"
	KindEvents  = "events"
	KindAvatars = "avatars"
)

var (
	// errors
	ErrUnknownKind      = errors.New("unknown upload kind")
	ErrEmptyFile        = errors.New("the file is empty")
	ErrUnsupportedImage = errors.New("only JPEG, PNG and GIF images are allowed")
	ErrNotFound         = core.NewNotFoundError("upload not found")

	nowFunc = time.Now // mockable

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

	defaultAllowedMIME = []string{"image/jpeg", "image/png", "image/gif"}
)

// Upload is a stored image and who uploaded it.
type Upload struct {
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	UploaderID  string    `json:"uploader_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type (
	Repository interface {
		CreateUpload(ctx context.Context, up Upload, exec ...core.DBExecutor) (Upload, error)
		GetUpload(ctx context.Context, url string, exec ...core.DBExecutor) (Upload, error)
		DeleteUpload(ctx context.Context, url string, exec ...core.DBExecutor) error
		// UploadURLsByUploader lists the URLs of the files uploaded by uploaderID.
		UploadURLsByUploader(ctx context.Context, uploaderID string, exec ...core.DBExecutor) ([]string, error)
		// CountReferences counts the posts, events and users pointing at url.
		CountReferences(ctx context.Context, url string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		core.FileReleaser

		// UploadImage stores an image under <kind>/<unix-millis>_<filename> and returns its public URL.
		// The content type is sniffed from data.
		UploadImage(ctx context.Context, uploaderID, kind, filename string, data []byte) (Upload, error)
		Delete(ctx context.Context, url string) error
		// ReleaseAll releases every file uploaded by uploaderID.
		ReleaseAll(ctx context.Context, uploaderID string) error
	}

	service struct {
		repo        Repository
		storage     core.FileStorage
		logger      core.Logger
		maxSize     int64
		allowedMIME []string
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, storage core.FileStorage, conf *core.Config, logger core.Logger) Service {
	allowed := conf.Storage.AllowedImageMIME
	if len(allowed) == 0 {
		allowed = defaultAllowedMIME
	}
	return &service{
		repo:        repo,
		storage:     storage,
		logger:      logger,
		maxSize:     conf.Storage.MaxImageSize,
		allowedMIME: allowed,
	}
}

func validKind(kind string) bool {
	switch kind {
	case KindPosts, KindEvents, KindAvatars:
		return true
	}
	return false
}

// SanitizeFilename keeps the base name of filename with only URL safe characters.
func SanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "image"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

func (svc *service) UploadImage(ctx context.Context, uploaderID, kind, filename string, data []byte) (Upload, error) {
	if !validKind(kind) {
		return Upload{}, core.NewValidationError(nil, core.FieldError{Field: "kind", Error: ErrUnknownKind.Error()})
	}
	if len(data) == 0 {
		return Upload{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: ErrEmptyFile.Error()})
	}
	if svc.maxSize > 0 && int64(len(data)) > svc.maxSize {
		return Upload{}, core.NewValidationError(nil, core.FieldError{
			Field: "file",
			Error: fmt.Sprintf("the file must not exceed %d MB", svc.maxSize/(1<<20)),
		})
	}

	contentType := http.DetectContentType(data)
	if !svc.allowed(contentType) {
		return Upload{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: ErrUnsupportedImage.Error()})
	}

	now := nowFunc().UTC()
	key := fmt.Sprintf("%s/%d_%s", kind, now.UnixNano()/int64(time.Millisecond), SanitizeFilename(filename))
	url, err := svc.storage.Save(ctx, key, data, contentType)
	if err != nil {
		return Upload{}, errors.Wrap(err, "saving image")
	}

	up, err := svc.repo.CreateUpload(ctx, Upload{
		URL:         url,
		Key:         key,
		ContentType: contentType,
		Size:        len(data),
		UploaderID:  uploaderID,
		CreatedAt:   now,
	})
	if err != nil {
		if dErr := svc.storage.Delete(ctx, url); dErr != nil {
			svc.logger.Warn("deleting unrecorded image", dErr, map[string]interface{}{"url": url})
		}
		return Upload{}, errors.Wrap(err, "recording upload")
	}
	return up, nil
}

func (svc *service) allowed(contentType string) bool {
	for _, mime := range svc.allowedMIME {
		if mime == contentType {
			return true
		}
	}
	return false
}

// Delete removes a stored image, whoever uploaded it.
func (svc *service) Delete(ctx context.Context, url string) error {
	if err := svc.storage.Delete(ctx, url); err != nil {
		if err == core.ErrForeignObject {
			return core.NewValidationError(nil, core.FieldError{Field: "url", Error: err.Error()})
		}
		return errors.Wrap(err, "deleting image")
	}
	if err := svc.repo.DeleteUpload(ctx, url); err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "deleting upload record")
	}
	return nil
}

func (svc *service) Release(ctx context.Context, ownerID, url string) {
	if url == "" {
		return
	}
	if err := svc.release(ctx, ownerID, url); err != nil {
		svc.logger.Warn("releasing stored file", err, map[string]interface{}{"url": url, "owner_id": ownerID})
	}
}

func (svc *service) release(ctx context.Context, ownerID, url string) error {
	up, err := svc.repo.GetUpload(ctx, url)
	if err != nil {
		if core.IsNotFound(err) { // not one of our uploads
			return nil
		}
		return errors.Wrap(err, "getting upload")
	}
	if up.UploaderID != ownerID {
		return nil
	}

	refs, err := svc.repo.CountReferences(ctx, url)
	if err != nil {
		return errors.Wrap(err, "counting upload references")
	}
	if refs > 0 {
		return nil
	}

	if err = svc.storage.Delete(ctx, url); err != nil && err != core.ErrForeignObject {
		return errors.Wrap(err, "deleting image")
	}
	if err = svc.repo.DeleteUpload(ctx, url); err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "deleting upload record")
	}
	return nil
}

func (svc *service) ReleaseAll(ctx context.Context, uploaderID string) error {
	urls, err := svc.repo.UploadURLsByUploader(ctx, uploaderID)
	if err != nil {
		return errors.Wrap(err, "listing uploads")
	}
	for _, url := range urls {
		svc.Release(ctx, uploaderID, url)
	}
	return nil
}
