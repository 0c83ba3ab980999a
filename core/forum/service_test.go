package forum_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/forum"
	"github.com/etudier/etudier/core/user"
	inmemdb "github.com/etudier/etudier/storage/database/inmem"
	testutil "github.com/etudier/etudier/tests"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	svc     *forum.Service
	pub     *testutil.ChangeRecorder
	objects *testutil.Objects
	author  user.User
	other   user.User
	admin   user.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	f := fixture{
		pub:     &testutil.ChangeRecorder{},
		objects: &testutil.Objects{},
		author:  testutil.CreateUser(t, users, "author01", "author@test.cd", "", nil, true),
		other:   testutil.CreateUser(t, users, "other001", "other@test.cd", "", nil, true),
		admin:   testutil.CreateUser(t, users, "admin001", "admin@test.cd", "", []string{user.RoleAdmin}, true),
	}
	f.svc = forum.NewService(inmemdb.NewForumRepository(db), f.objects, f.pub, testutil.NopLogger{})
	return f
}

func (f fixture) post(t *testing.T, content string, tags ...string) forum.Post {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), f.author, forum.NewPost{Title: "Q", Content: content, Tags: tags}, nil)
	require.NoError(t, err)
	return p
}

func TestService_CreatePost(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	images := []forum.Image{
		{Filename: "a.PNG", ContentType: "image/png", Data: pngHeader},
		{Filename: "b.png", ContentType: "image/png", Data: pngHeader},
	}
	p, err := f.svc.CreatePost(ctx, f.author, forum.NewPost{Content: "Look at this", Tags: []string{"math"}}, images)
	require.NoError(t, err)
	assert.Equal(t, "author01", p.Author)
	assert.Len(t, p.ImageURLs, 2)
	assert.Len(t, f.objects.Objects, 2)
	for _, url := range p.ImageURLs {
		assert.Regexp(t, `^http://objects\.test/posts/public/`+regexp.QuoteMeta(f.author.ID)+`_\d+-[0-9a-z]+\.png$`, url)
	}

	c := f.pub.Last()
	assert.Equal(t, forum.PostTable, c.Table)
	assert.Equal(t, core.ChangeInsert, c.Type)
	assert.True(t, c.Public)
}

func TestService_CreatePost_FailedUploadsAreSkipped(t *testing.T) {
	f := setup(t)
	f.objects.Err = errors.New("storage down")

	p, err := f.svc.CreatePost(context.Background(), f.author, forum.NewPost{Content: "text"},
		[]forum.Image{{Filename: "a.png", ContentType: "image/png", Data: pngHeader}})
	require.NoError(t, err)
	assert.Empty(t, p.ImageURLs)
}

func TestService_ImageKey(t *testing.T) {
	f := setup(t)
	f.svc.SetNow(func() time.Time { return time.UnixMilli(1700000000123) })

	key := f.svc.ImageKey("u1", forum.Image{Filename: "Photo.JPG", ContentType: "image/jpeg"})
	assert.Regexp(t, `^posts/public/u1_1700000000123-[0-9a-z]+\.jpg$`, key)

	key = f.svc.ImageKey("u1", forum.Image{Filename: "noext", ContentType: "image/png"})
	assert.Regexp(t, `^posts/public/u1_1700000000123-[0-9a-z]+\.png$`, key)
}

func TestService_Permissions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.post(t, "original")

	content := "edited"
	_, err := f.svc.UpdatePost(ctx, p, f.other, forum.UpdatePost{Content: &content})
	assert.Equal(t, core.ErrForbidden, err)
	_, err = f.svc.UpdatePost(ctx, p, f.admin, forum.UpdatePost{Content: &content})
	assert.Equal(t, core.ErrForbidden, err, "admins moderate but do not edit")

	updated, err := f.svc.UpdatePost(ctx, p, f.author, forum.UpdatePost{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.NotNil(t, updated.LastEdited)

	_, err = f.svc.MarkDuplicate(ctx, p, f.author, true)
	assert.Equal(t, core.ErrForbidden, err)
	dup, err := f.svc.MarkDuplicate(ctx, p, f.admin, true)
	require.NoError(t, err)
	assert.True(t, dup.IsDuplicate)

	posts, err := f.svc.ListPosts(ctx, forum.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts, "duplicates are hidden by default")
	posts, err = f.svc.ListPosts(ctx, forum.ListFilter{IncludeDuplicates: true})
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	assert.Equal(t, core.ErrForbidden, f.svc.DeletePost(ctx, p, f.other))
	require.NoError(t, f.svc.DeletePost(ctx, p, f.admin))
	_, err = f.svc.GetPost(ctx, p.ID)
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, core.ChangeDelete, f.pub.Last().Type)
}

func TestService_Answers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.post(t, "question")

	a, err := f.svc.CreateAnswer(ctx, p, f.other, forum.NewAnswer{Answer: "answer"})
	require.NoError(t, err)
	assert.Equal(t, "other001", a.Author)
	assert.Equal(t, forum.AnswerTable, f.pub.Last().Table)

	got, err := f.svc.GetPostWithAnswers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 1)
	assert.Equal(t, a.ID, got.Answers[0].ID)

	assert.Equal(t, core.ErrForbidden, f.svc.DeleteAnswer(ctx, a, f.author))
	require.NoError(t, f.svc.DeleteAnswer(ctx, a, f.other))
	c := f.pub.Last()
	assert.Equal(t, core.ChangeDelete, c.Type)
	assert.Equal(t, map[string]string{"id": a.ID, "post_id": p.ID}, c.Record)
}

func TestService_Vote(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.post(t, "vote on me")

	_, err := f.svc.Vote(ctx, forum.TargetPost, p.ID, f.other, "sideways")
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	res, err := f.svc.Vote(ctx, forum.TargetPost, p.ID, f.other, forum.Upvote)
	require.NoError(t, err)
	assert.Equal(t, forum.NewVoteResult(forum.Tally{Upvote: 1}, forum.Upvote), res)

	res, err = f.svc.Vote(ctx, forum.TargetPost, p.ID, f.author, forum.Downvote)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)

	c := f.pub.Last()
	assert.Equal(t, core.ChangeUpdate, c.Type)
	assert.Equal(t, 1, c.Record.(forum.Post).Downvote)

	p, err = f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	uv, err := f.svc.UserVote(ctx, forum.TargetPost, p.Tally(), p.ID, f.other)
	require.NoError(t, err)
	assert.Equal(t, forum.Upvote, uv.UserVote)
	assert.Equal(t, forum.Tally{Upvote: 1, Downvote: 1}, uv.Tally)

	_, err = f.svc.Vote(ctx, forum.TargetAnswer, "missing", f.other, forum.Upvote)
	assert.True(t, core.IsNotFound(err))
}

func TestService_VoteIsAtomic(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.post(t, "popular")

	voters := make([]user.User, 25)
	for i := range voters {
		voters[i] = user.User{ID: "voter-" + string(rune('a'+i))}
	}
	var wg sync.WaitGroup
	for _, v := range voters {
		wg.Add(1)
		go func(v user.User) {
			defer wg.Done()
			// vote twice: every voter ends up with no vote
			_, _ = f.svc.Vote(ctx, forum.TargetPost, p.ID, v, forum.Upvote)
			_, _ = f.svc.Vote(ctx, forum.TargetPost, p.ID, v, forum.Upvote)
		}(v)
	}
	wg.Wait()

	p, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, forum.Tally{}, p.Tally())
}

func TestService_Report(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.post(t, "spam")

	reported, err := f.svc.Report(ctx, p, f.other)
	require.NoError(t, err)
	assert.Equal(t, 1, reported.ReportCount)

	_, err = f.svc.Report(ctx, p, f.other)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))

	reported, err = f.svc.Report(ctx, p, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, reported.ReportCount)
}

func TestService_ListPosts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.post(t, "about algebra", "math")
	f.post(t, "about verbs", "french")

	tests := []struct {
		name   string
		filter forum.ListFilter
		want   int
	}{
		{name: "all", filter: forum.ListFilter{}, want: 2},
		{name: "tag", filter: forum.ListFilter{Tag: "math"}, want: 1},
		{name: "search", filter: forum.ListFilter{Search: "VERBS"}, want: 1},
		{name: "limit", filter: forum.ListFilter{Limit: 1}, want: 1},
		{name: "offset past the end", filter: forum.ListFilter{Offset: 5}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := f.svc.ListPosts(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, posts, tt.want)
		})
	}
}

func TestCheckImages(t *testing.T) {
	tests := []struct {
		name    string
		images  []forum.Image
		wantErr bool
	}{
		{name: "none", images: nil},
		{name: "png", images: []forum.Image{{Filename: "a.png", Data: pngHeader}}},
		{name: "not an image", images: []forum.Image{{Filename: "a.png", Data: []byte("%PDF-1.4")}}, wantErr: true},
		{name: "too big", images: []forum.Image{{Filename: "a.png", Data: append(pngHeader, make([]byte, 64)...)}}, wantErr: true},
		{name: "too many", images: make([]forum.Image, 3), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := forum.CheckImages(tt.images, 32, 2)
			if tt.wantErr {
				var vErr *core.ValidationError
				assert.True(t, errors.As(err, &vErr))
				return
			}
			require.NoError(t, err)
			for _, img := range tt.images {
				assert.Equal(t, "image/png", img.ContentType)
			}
		})
	}
}

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"go", "math"}, forum.CleanTags([]string{" Go ", "#go", "", "MATH"}))
}

func TestService_CreatePost_NoImages(t *testing.T) {
	f := setup(t)

	p, err := f.svc.CreatePost(context.Background(), f.author, forum.NewPost{Content: "text"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, p.ImageURLs)
	assert.Empty(t, f.objects.Objects)
}
