package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/module"
	"github.com/etudier/etudier/core/quiz"
)

// Flashcards

type flashcardApi struct {
	svc      *flashcard.Service
	validate *validator.Validate
}

func registerFlashcardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *flashcard.Service, validate *validator.Validate) {
	api := flashcardApi{svc: svc, validate: validate}

	fg := g.Group("/flashcards", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create)

	dg := fg.Group("/:id", objectMiddleware(func(ctx echo.Context, claims Claims, id string) (flashcard.Deck, error) {
		return svc.Get(ctx.Request().Context(), claims.Subject, id)
	}))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
}

func (api *flashcardApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	decks, err := api.svc.List(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying decks")
	}
	if decks == nil {
		decks = []flashcard.Deck{}
	}
	return ctx.JSON(http.StatusOK, decks)
}

func (api *flashcardApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data flashcard.NewDeck
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDeck")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating deck")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *flashcardApi) retrieve(ctx echo.Context) error {
	d, err := contextObject[flashcard.Deck](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *flashcardApi) destroy(ctx echo.Context) error {
	d, err := contextObject[flashcard.Deck](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), d); err != nil {
		return errors.Wrap(err, "deleting deck")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Quizzes

type quizApi struct {
	svc      *quiz.Service
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *quiz.Service, validate *validator.Validate) {
	api := quizApi{svc: svc, validate: validate}

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.query)
	qg.POST("", api.create)
	qg.POST("/:id/grade", api.grade)

	dg := qg.Group("/:id", objectMiddleware(func(ctx echo.Context, _ Claims, id string) (quiz.Quiz, error) {
		return svc.Get(ctx.Request().Context(), id)
	}))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
}

func (api *quizApi) query(ctx echo.Context) error {
	quizzes, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data quiz.NewQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	qz, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	qz, err := contextObject[quiz.Quiz](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) grade(ctx echo.Context) error {
	var data quiz.Answers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Answers")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.Grade(ctx.Request().Context(), ctx.Param("id"), data.Answers)
	if err != nil {
		return errors.Wrap(err, "grading quiz")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	qz, err := contextObject[quiz.Quiz](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), qz, claims.Subject); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Modules

type moduleApi struct {
	svc      *module.Service
	validate *validator.Validate
}

func registerModuleAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *module.Service, validate *validator.Validate) {
	api := moduleApi{svc: svc, validate: validate}

	mg := g.Group("/modules", jwt)
	mg.GET("", api.query)
	mg.POST("", api.create)
	mg.DELETE("/:id", api.destroy, objectMiddleware(func(ctx echo.Context, claims Claims, id string) (module.Module, error) {
		return svc.Get(ctx.Request().Context(), claims.Subject, id)
	}))
}

func (api *moduleApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	modules, err := api.svc.List(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if modules == nil {
		modules = []module.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *moduleApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data module.NewModule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *moduleApi) destroy(ctx echo.Context) error {
	m, err := contextObject[module.Module](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), m); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}
