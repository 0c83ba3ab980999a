package forum

import (
	"context"
	"fmt"
	"math/rand"
	"mime"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/user"
)

const (
	PostTable   = "post"
	AnswerTable = "post_answer"

	imageUploadConcurrency = 4
)

var (
	// errors
	ErrPostNotFound    = core.NewNotFoundError("post")
	ErrAnswerNotFound  = core.NewNotFoundError("answer")
	ErrAlreadyReported = errors.New("you already reported this post")
)

type (
	Repository interface {
		// ListPosts returns posts newest first, with their author.
		ListPosts(ctx context.Context, filter ListFilter) ([]Post, error)
		GetPost(ctx context.Context, id string) (Post, error)
		CreatePost(ctx context.Context, p Post) (Post, error)
		UpdatePost(ctx context.Context, p Post) (Post, error)
		DeletePost(ctx context.Context, id string) error
		// ReportPost records one report per user and returns the post with its new report count.
		// Returns ErrAlreadyReported when the user reported it before.
		ReportPost(ctx context.Context, postID, userID string) (Post, error)

		// ListAnswers returns the answers of a post, oldest first.
		ListAnswers(ctx context.Context, postID string) ([]Answer, error)
		GetAnswer(ctx context.Context, id string) (Answer, error)
		CreateAnswer(ctx context.Context, a Answer) (Answer, error)
		DeleteAnswer(ctx context.Context, id string) error

		// Vote atomically applies a vote of userID on the target, following ApplyVote.
		Vote(ctx context.Context, target Target, id, userID string, cast VoteType) (VoteResult, error)
		// GetVote returns the current vote of userID on the target, or NoVote.
		GetVote(ctx context.Context, target Target, id, userID string) (VoteType, error)
	}

	Service struct {
		repo    Repository
		objects core.ObjectStore
		pub     core.ChangePublisher
		logger  core.Logger
		now     func() time.Time // mockable
	}
)

func NewService(repo Repository, objects core.ObjectStore, pub core.ChangePublisher, logger core.Logger) *Service {
	return &Service{repo: repo, objects: objects, pub: pub, logger: logger, now: time.Now}
}

func (svc *Service) ListPosts(ctx context.Context, filter ListFilter) ([]Post, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	posts, err := svc.repo.ListPosts(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "listing posts")
	}
	return posts, nil
}

func (svc *Service) GetPost(ctx context.Context, id string) (Post, error) {
	return svc.repo.GetPost(ctx, id)
}

// GetPostWithAnswers returns the post and its answers.
func (svc *Service) GetPostWithAnswers(ctx context.Context, id string) (Post, error) {
	p, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if p.Answers, err = svc.repo.ListAnswers(ctx, p.ID); err != nil {
		return Post{}, errors.Wrap(err, "listing answers")
	}
	return p, nil
}

// CreatePost uploads the images then saves the post with the public URLs of the uploaded ones.
// An image that fails to upload is logged and left out.
func (svc *Service) CreatePost(ctx context.Context, usr user.User, np NewPost, images []Image) (Post, error) {
	tags := np.Tags
	if tags == nil {
		tags = []string{}
	}
	p := Post{
		ID:        uuid.NewString(),
		UserID:    usr.ID,
		Author:    usr.Username,
		Title:     np.Title,
		Content:   np.Content,
		ImageURLs: svc.uploadImages(ctx, usr.ID, images),
		Tags:      tags,
		CreatedAt: svc.now().UTC(),
	}

	p, err := svc.repo.CreatePost(ctx, p)
	if err != nil {
		return Post{}, errors.Wrap(err, "creating post")
	}
	svc.publishPost(ctx, core.ChangeInsert, p)
	return p, nil
}

func (svc *Service) uploadImages(ctx context.Context, userID string, images []Image) []string {
	if svc.objects == nil || len(images) == 0 {
		return []string{}
	}

	urls := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageUploadConcurrency)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			key := svc.imageKey(userID, img)
			url, err := svc.objects.Put(gctx, key, img.ContentType, img.Data)
			if err != nil {
				svc.logger.Error(fmt.Sprintf("uploading post image %q", img.Filename), err)
				return nil
			}
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()
	return core.CleanStrings(urls)
}

// imageKey names an upload posts/public/<uid>_<unixms>-<rand>.<ext>
func (svc *Service) imageKey(userID string, img Image) string {
	ext := strings.ToLower(path.Ext(img.Filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(img.ContentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	suffix := strconv.FormatInt(rand.Int63(), 36)
	return fmt.Sprintf("posts/public/%s_%d-%s%s", userID, svc.now().UnixMilli(), suffix, ext)
}

// UpdatePost edits the post of its owner and stamps it as edited.
func (svc *Service) UpdatePost(ctx context.Context, p Post, usr user.User, up UpdatePost) (Post, error) {
	if p.UserID != usr.ID {
		return Post{}, core.ErrForbidden
	}
	if up.Title != nil {
		p.Title = *up.Title
	}
	if up.Content != nil {
		p.Content = *up.Content
	}
	if up.Tags != nil {
		p.Tags = up.Tags
	}
	edited := svc.now().UTC()
	p.LastEdited = &edited
	return svc.savePost(ctx, p)
}

// DeletePost removes a post; its owner or an admin may do so.
func (svc *Service) DeletePost(ctx context.Context, p Post, usr user.User) error {
	if p.UserID != usr.ID && !usr.IsAdmin() {
		return core.ErrForbidden
	}
	if err := svc.repo.DeletePost(ctx, p.ID); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	svc.publishPost(ctx, core.ChangeDelete, p)
	return nil
}

// MarkDuplicate flags (or unflags) the post as a duplicate; admins only.
func (svc *Service) MarkDuplicate(ctx context.Context, p Post, usr user.User, dup bool) (Post, error) {
	if !usr.IsAdmin() {
		return Post{}, core.ErrForbidden
	}
	p.IsDuplicate = dup
	return svc.savePost(ctx, p)
}

// Report counts one report of the user against the post.
func (svc *Service) Report(ctx context.Context, p Post, usr user.User) (Post, error) {
	p, err := svc.repo.ReportPost(ctx, p.ID, usr.ID)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyReported {
			return Post{}, core.NewValidationError(ErrAlreadyReported)
		}
		return Post{}, errors.Wrap(err, "reporting post")
	}
	svc.publishPost(ctx, core.ChangeUpdate, p)
	return p, nil
}

func (svc *Service) GetAnswer(ctx context.Context, id string) (Answer, error) {
	return svc.repo.GetAnswer(ctx, id)
}

func (svc *Service) CreateAnswer(ctx context.Context, p Post, usr user.User, na NewAnswer) (Answer, error) {
	a, err := svc.repo.CreateAnswer(ctx, Answer{
		ID:        uuid.NewString(),
		PostID:    p.ID,
		UserID:    usr.ID,
		Author:    usr.Username,
		Answer:    na.Answer,
		CreatedAt: svc.now().UTC(),
	})
	if err != nil {
		return Answer{}, errors.Wrap(err, "creating answer")
	}
	svc.publishAnswer(ctx, core.ChangeInsert, a)
	return a, nil
}

// DeleteAnswer removes an answer; its owner or an admin may do so.
func (svc *Service) DeleteAnswer(ctx context.Context, a Answer, usr user.User) error {
	if a.UserID != usr.ID && !usr.IsAdmin() {
		return core.ErrForbidden
	}
	if err := svc.repo.DeleteAnswer(ctx, a.ID); err != nil {
		return errors.Wrap(err, "deleting answer")
	}
	svc.publishAnswer(ctx, core.ChangeDelete, a)
	return nil
}

// Vote casts the vote of the user on a post or an answer.
func (svc *Service) Vote(ctx context.Context, target Target, id string, usr user.User, cast VoteType) (VoteResult, error) {
	if !cast.Valid() {
		return VoteResult{}, core.NewValidationError(ErrInvalidVote, core.FieldError{Field: "vote_type", Error: ErrInvalidVote.Error()})
	}
	res, err := svc.repo.Vote(ctx, target, id, usr.ID, cast)
	if err != nil {
		return VoteResult{}, errors.Wrapf(err, "voting on %s", target)
	}

	switch target {
	case TargetPost:
		if p, err := svc.repo.GetPost(ctx, id); err == nil {
			svc.publishPost(ctx, core.ChangeUpdate, p)
		}
	case TargetAnswer:
		if a, err := svc.repo.GetAnswer(ctx, id); err == nil {
			svc.publishAnswer(ctx, core.ChangeUpdate, a)
		}
	}
	return res, nil
}

// UserVote returns the tally of the target and the current vote of the user on it.
func (svc *Service) UserVote(ctx context.Context, target Target, tally Tally, id string, usr user.User) (VoteResult, error) {
	vt, err := svc.repo.GetVote(ctx, target, id, usr.ID)
	if err != nil {
		return VoteResult{}, errors.Wrapf(err, "getting vote on %s", target)
	}
	return NewVoteResult(tally, vt), nil
}

func (svc *Service) savePost(ctx context.Context, p Post) (Post, error) {
	answers := p.Answers
	p, err := svc.repo.UpdatePost(ctx, p)
	if err != nil {
		return Post{}, errors.Wrap(err, "updating post")
	}
	p.Answers = answers
	svc.publishPost(ctx, core.ChangeUpdate, p)
	return p, nil
}

func (svc *Service) publishPost(ctx context.Context, typ core.ChangeType, p Post) {
	var record interface{}
	if typ != core.ChangeDelete {
		p.Answers = nil
		record = p
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(PostTable, typ, p.ID, p.UserID, true /* public */, record))
}

func (svc *Service) publishAnswer(ctx context.Context, typ core.ChangeType, a Answer) {
	var record interface{} = a
	if typ == core.ChangeDelete {
		// subscribers need the post to drop the answer from
		record = map[string]string{"id": a.ID, "post_id": a.PostID}
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(AnswerTable, typ, a.ID, a.UserID, true /* public */, record))
}
