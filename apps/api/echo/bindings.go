package echoapi

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

const (
	orderingParam = "ordering"
	objectKey     = "object"
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// Ordering binds ?ordering=-deadline,title, keeping only the allowed fields.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

// boolQuery parses an optional boolean query parameter; invalid values are ignored.
func boolQuery(ctx echo.Context, name string) *bool {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

func intQuery(ctx echo.Context, name string) int {
	n, _ := strconv.Atoi(ctx.QueryParam(name))
	return n
}

// contextObject returns the record loaded by an object middleware.
func contextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(objectKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}

// objectMiddleware loads the record named by the :id path parameter into the context.
func objectMiddleware[T any](load func(ctx echo.Context, claims Claims, id string) (T, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			obj, err := load(ctx, claims, ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(objectKey, obj)
			return next(ctx)
		}
	}
}

// readFile reads an uploaded file, refusing files larger than maxSize bytes.
func readFile(fh *multipart.FileHeader, field string, maxSize int64) ([]byte, error) {
	if maxSize > 0 && fh.Size > maxSize {
		return nil, core.NewValidationError(nil, core.FieldError{
			Field: field,
			Error: fh.Filename + " exceeds the maximum size of " + strconv.FormatInt(maxSize>>20, 10) + "MB",
		})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	return data, errors.Wrap(err, "reading uploaded file")
}
