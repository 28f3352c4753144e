package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/media"
)

type uploadApi struct {
	svc     media.Service
	maxSize int64
}

func registerUploadAPI(members *echo.Group, api *uploadApi) {
	g := members.Group("/uploads")
	g.POST("", api.create)
	g.DELETE("", api.destroy, adminMiddleware)
}

// create stores the "file" part of a multipart form under the "kind" folder (posts, events or avatars).
func (api *uploadApi) create(ctx echo.Context) error {
	uploader, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	// read one byte past the limit so that oversized files are rejected by the service
	var rdr io.Reader = f
	if api.maxSize > 0 {
		rdr = io.LimitReader(f, api.maxSize+1)
	}
	data, err := io.ReadAll(rdr)
	if err != nil {
		return errors.Wrap(err, "reading uploaded file")
	}

	upload, err := api.svc.UploadImage(ctx.Request().Context(), uploader.ID, ctx.FormValue("kind"), fh.Filename, data)
	if err != nil {
		return errors.Wrap(err, "uploading image")
	}
	return ctx.JSON(http.StatusCreated, upload)
}

func (api *uploadApi) destroy(ctx echo.Context) error {
	var data DeleteUploadRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteUploadRequest")
	}
	if err := api.svc.Delete(ctx.Request().Context(), data.URL); err != nil {
		return errors.Wrap(err, "deleting upload")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type DeleteUploadRequest struct {
	URL string `json:"url"`
}
