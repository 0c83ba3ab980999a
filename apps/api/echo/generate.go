package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/generate"
)

const summaryFileField = "file"

type generateApi struct {
	svc      *generate.Service
	validate *validator.Validate
	conf     *core.Config
}

func registerGenerateAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *generate.Service,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := generateApi{svc: svc, validate: validate, conf: conf}

	gg := g.Group("/generate", jwt, api.enabledMiddleware)
	gg.POST("/flashcards", api.flashcards)
	gg.POST("/quiz", api.quiz)
	gg.POST("/modules", api.modules)

	g.POST("/summaries", api.summarize, jwt, api.enabledMiddleware)
}

// enabledMiddleware answers 503 while no model is configured.
func (api *generateApi) enabledMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if api.svc == nil {
			return errGenerateDisabled
		}
		return next(ctx)
	}
}

// Handlers

func (api *generateApi) flashcards(ctx echo.Context) error {
	var data generate.Prompt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Prompt")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	draft, err := api.svc.Flashcards(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating flashcards")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *generateApi) quiz(ctx echo.Context) error {
	var data generate.Prompt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Prompt")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	draft, err := api.svc.Quiz(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating quiz")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *generateApi) modules(ctx echo.Context) error {
	var data generate.ModuleSearch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ModuleSearch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mods, err := api.svc.Modules(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "suggesting modules")
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *generateApi) summarize(ctx echo.Context) error {
	fh, err := ctx.FormFile(summaryFileField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: summaryFileField, Error: "a PDF file is required"})
	}
	data, err := readFile(fh, summaryFileField, api.conf.Uploads.MaxPDFSize)
	if err != nil {
		return err
	}

	sum, err := api.svc.Summarize(ctx.Request().Context(), fh.Filename, data)
	if err != nil {
		return errors.Wrap(err, "summarizing document")
	}
	return ctx.JSON(http.StatusOK, sum)
}
