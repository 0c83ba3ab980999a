package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/forum"
	"github.com/etudier/etudier/core/user"
)

var imageFields = []string{"images", "images[]"}

type forumApi struct {
	svc      *forum.Service
	validate *validator.Validate
	conf     *core.Config
}

func registerForumAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	ctxUsr echo.MiddlewareFunc,
	svc *forum.Service,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := forumApi{svc: svc, validate: validate, conf: conf}

	pg := g.Group("/posts", jwt, ctxUsr)
	pg.GET("", api.queryPosts)
	pg.POST("", api.createPost)

	dg := pg.Group("/:id", objectMiddleware(func(ctx echo.Context, _ Claims, id string) (forum.Post, error) {
		return svc.GetPost(ctx.Request().Context(), id)
	}))
	dg.GET("", api.retrievePost)
	dg.PUT("", api.updatePost)
	dg.DELETE("", api.destroyPost)
	dg.GET("/vote", api.postVote)
	dg.POST("/vote", api.votePost)
	dg.POST("/report", api.reportPost)
	dg.POST("/duplicate", api.markDuplicate, adminMiddleware())
	dg.POST("/answers", api.createAnswer)

	ag := g.Group("/answers/:id", jwt, ctxUsr, objectMiddleware(func(ctx echo.Context, _ Claims, id string) (forum.Answer, error) {
		return svc.GetAnswer(ctx.Request().Context(), id)
	}))
	ag.DELETE("", api.destroyAnswer)
	ag.GET("/vote", api.answerVote)
	ag.POST("/vote", api.voteAnswer)
}

// Handlers

func (api *forumApi) queryPosts(ctx echo.Context) error {
	filter := forum.ListFilter{
		Tag:    core.CleanString(ctx.QueryParam("tag"), true /* lower */),
		Search: core.CleanString(ctx.QueryParam("search")),
		Limit:  intQuery(ctx, "limit"),
		Offset: intQuery(ctx, "offset"),
	}
	if dup := boolQuery(ctx, "include_duplicates"); dup != nil {
		filter.IncludeDuplicates = *dup
	}

	posts, err := api.svc.ListPosts(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying posts")
	}
	if posts == nil {
		posts = []forum.Post{}
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *forumApi) createPost(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data forum.NewPost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	images, err := api.bindImages(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.CreatePost(ctx.Request().Context(), usr, data, images)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// bindImages reads the pictures attached to a multipart post.
func (api *forumApi) bindImages(ctx echo.Context) ([]forum.Image, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed multipart form").SetInternal(err)
	}

	var images []forum.Image
	for _, field := range imageFields {
		for _, fh := range form.File[field] {
			data, err := readFile(fh, "images", api.conf.Uploads.MaxImageSize)
			if err != nil {
				return nil, err
			}
			images = append(images, forum.Image{Filename: fh.Filename, Data: data})
		}
	}
	if err = forum.CheckImages(images, api.conf.Uploads.MaxImageSize, api.conf.Uploads.MaxImages); err != nil {
		return nil, err
	}
	return images, nil
}

func (api *forumApi) retrievePost(ctx echo.Context) error {
	p, err := contextObject[forum.Post](ctx)
	if err != nil {
		return err
	}
	p, err = api.svc.GetPostWithAnswers(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "getting post")
	}
	if p.Answers == nil {
		p.Answers = []forum.Answer{}
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *forumApi) updatePost(ctx echo.Context) error {
	usr, p, err := contextUserAndObject[forum.Post](ctx)
	if err != nil {
		return err
	}
	var data forum.UpdatePost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePost")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err = api.svc.UpdatePost(ctx.Request().Context(), p, usr, data)
	if err != nil {
		return errors.Wrap(err, "updating post")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *forumApi) destroyPost(ctx echo.Context) error {
	usr, p, err := contextUserAndObject[forum.Post](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePost(ctx.Request().Context(), p, usr); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *forumApi) markDuplicate(ctx echo.Context) error {
	usr, p, err := contextUserAndObject[forum.Post](ctx)
	if err != nil {
		return err
	}
	var data forum.MarkDuplicate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkDuplicate")
	}
	dup := true
	if data.IsDuplicate != nil {
		dup = *data.IsDuplicate
	}

	p, err = api.svc.MarkDuplicate(ctx.Request().Context(), p, usr, dup)
	if err != nil {
		return errors.Wrap(err, "marking post as duplicate")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *forumApi) reportPost(ctx echo.Context) error {
	usr, p, err := contextUserAndObject[forum.Post](ctx)
	if err != nil {
		return err
	}
	p, err = api.svc.Report(ctx.Request().Context(), p, usr)
	if err != nil {
		return errors.Wrap(err, "reporting post")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *forumApi) createAnswer(ctx echo.Context) error {
	usr, p, err := contextUserAndObject[forum.Post](ctx)
	if err != nil {
		return err
	}
	var data forum.NewAnswer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnswer")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.CreateAnswer(ctx.Request().Context(), p, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating answer")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *forumApi) destroyAnswer(ctx echo.Context) error {
	usr, a, err := contextUserAndObject[forum.Answer](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAnswer(ctx.Request().Context(), a, usr); err != nil {
		return errors.Wrap(err, "deleting answer")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Votes

func (api *forumApi) votePost(ctx echo.Context) error {
	usr, p, err := contextUserAndObject[forum.Post](ctx)
	if err != nil {
		return err
	}
	return api.vote(ctx, forum.TargetPost, p.ID, usr)
}

func (api *forumApi) voteAnswer(ctx echo.Context) error {
	usr, a, err := contextUserAndObject[forum.Answer](ctx)
	if err != nil {
		return err
	}
	return api.vote(ctx, forum.TargetAnswer, a.ID, usr)
}

func (api *forumApi) vote(ctx echo.Context, target forum.Target, id string, usr user.User) error {
	var data forum.CastVote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CastVote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Vote(ctx.Request().Context(), target, id, usr, data.VoteType)
	if err != nil {
		return errors.Wrap(err, "voting")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *forumApi) postVote(ctx echo.Context) error {
	usr, p, err := contextUserAndObject[forum.Post](ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.UserVote(ctx.Request().Context(), forum.TargetPost, p.Tally(), p.ID, usr)
	if err != nil {
		return errors.Wrap(err, "getting post vote")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *forumApi) answerVote(ctx echo.Context) error {
	usr, a, err := contextUserAndObject[forum.Answer](ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.UserVote(ctx.Request().Context(), forum.TargetAnswer, a.Tally(), a.ID, usr)
	if err != nil {
		return errors.Wrap(err, "getting answer vote")
	}
	return ctx.JSON(http.StatusOK, res)
}

// contextUser returns the user loaded by contextUserMiddleware.
func contextUser(ctx echo.Context) (user.User, error) {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	if !ok {
		return user.User{}, errUnauthorized
	}
	return usr, nil
}

func contextUserAndObject[T any](ctx echo.Context) (user.User, T, error) {
	obj, err := contextObject[T](ctx)
	if err != nil {
		return user.User{}, obj, err
	}
	usr, err := contextUser(ctx)
	return usr, obj, err
}
