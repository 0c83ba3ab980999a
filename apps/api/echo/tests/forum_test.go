package tests

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etudier/etudier/core/forum"
)

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	gifData = append([]byte("GIF89a"), bytes.Repeat([]byte{0}, 64)...)
)

type formFile struct {
	field, name string
	data        []byte
}

// doMultipart posts fields and files as a multipart form.
func (app *testApp) doMultipart(t *testing.T, path, token string, fields map[string][]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, vals := range fields {
		for _, v := range vals {
			require.NoError(t, w.WriteField(name, v))
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestForumPosts(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "student1", "s1@example.com", false)
	other := app.createUser(t, "student2", "s2@example.com", false)
	admin := app.createUser(t, "moderator", "mod@example.com", true)
	token, otherToken, adminToken := app.getToken(t, usr), app.getToken(t, other), app.getToken(t, admin)

	app.run(t, []httpTest{
		{name: "list no token", method: http.MethodGet, path: "/v1/posts", wantCode: http.StatusUnauthorized},
		{name: "list empty", method: http.MethodGet, path: "/v1/posts", token: token, wantData: marchallList(t)},
		{name: "create no content", method: http.MethodPost, path: "/v1/posts", token: token, body: []byte(`{"title":"Help"}`), wantCode: http.StatusBadRequest},
	})

	t.Run("create with too many images", func(t *testing.T) {
		rec := app.doMultipart(t, "/v1/posts", token, map[string][]string{"content": {"look"}},
			formFile{"images", "a.png", pngData}, formFile{"images", "b.png", pngData}, formFile{"images", "c.png", pngData})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("create with a non image", func(t *testing.T) {
		rec := app.doMultipart(t, "/v1/posts", token, map[string][]string{"content": {"look"}},
			formFile{"images", "notes.txt", []byte("plain text, not a picture")})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("create with an oversized image", func(t *testing.T) {
		big := append([]byte("GIF89a"), bytes.Repeat([]byte{0}, int(app.conf.Uploads.MaxImageSize))...)
		rec := app.doMultipart(t, "/v1/posts", token, map[string][]string{"content": {"look"}},
			formFile{"images", "big.gif", big})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	rec := app.doMultipart(t, "/v1/posts", token,
		map[string][]string{"title": {" Integrals "}, "content": {"How do I integrate x^2?"}, "tags": {"#Math", "calculus", "math"}},
		formFile{"images", "board.png", pngData}, formFile{"images[]", "sketch.gif", gifData})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post forum.Post
	unmarshal(t, rec, &post)
	assert.Equal(t, "Integrals", post.Title)
	assert.Equal(t, "student1", post.Author)
	assert.Equal(t, []string{"math", "calculus"}, post.Tags)
	require.Len(t, post.ImageURLs, 2)
	for _, u := range post.ImageURLs {
		assert.True(t, strings.HasPrefix(u, "http://objects.test/posts/public/"+usr.ID+"_"), u)
	}
	assert.Len(t, app.objects.Objects, 2)

	rec = app.do(http.MethodPost, "/v1/posts", otherToken, []byte(`{"content":"Best history books?","tags":["history"]}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var history forum.Post
	unmarshal(t, rec, &history)
	assert.Empty(t, history.ImageURLs)

	ids := func(t *testing.T, query string) []string {
		t.Helper()
		rec := app.do(http.MethodGet, "/v1/posts"+query, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var posts []forum.Post
		unmarshal(t, rec, &posts)
		res := make([]string, 0, len(posts))
		for _, p := range posts {
			res = append(res, p.ID)
		}
		return res
	}

	t.Run("list", func(t *testing.T) {
		assert.ElementsMatch(t, []string{post.ID, history.ID}, ids(t, ""))
		assert.Equal(t, []string{post.ID}, ids(t, "?tag=MATH"))
		assert.Equal(t, []string{history.ID}, ids(t, "?search=books"))
		assert.Len(t, ids(t, "?limit=1"), 1)
		assert.Empty(t, ids(t, "?tag=chemistry"))
	})

	app.run(t, []httpTest{
		{name: "retrieve unknown", method: http.MethodGet, path: "/v1/posts/unknown", token: token, wantCode: http.StatusNotFound},
		{name: "update by other user", method: http.MethodPut, path: "/v1/posts/" + post.ID, token: otherToken, body: []byte(`{"content":"mine"}`), wantCode: http.StatusForbidden},
		{name: "update empty content", method: http.MethodPut, path: "/v1/posts/" + post.ID, token: token, body: []byte(`{"content":""}`), wantCode: http.StatusBadRequest},
		{name: "delete by other user", method: http.MethodDelete, path: "/v1/posts/" + post.ID, token: otherToken, wantCode: http.StatusForbidden},
		{name: "mark duplicate not admin", method: http.MethodPost, path: "/v1/posts/" + history.ID + "/duplicate", token: token, wantCode: http.StatusForbidden},
	})

	t.Run("update", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/posts/"+post.ID, token, []byte(`{"content":"How do I integrate x^3?","tags":["Calculus"]}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got forum.Post
		unmarshal(t, rec, &got)
		assert.Equal(t, "Integrals", got.Title)
		assert.Equal(t, "How do I integrate x^3?", got.Content)
		assert.Equal(t, []string{"calculus"}, got.Tags)
		assert.NotNil(t, got.LastEdited)
	})

	t.Run("report", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/posts/"+post.ID+"/report", otherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got forum.Post
		unmarshal(t, rec, &got)
		assert.Equal(t, 1, got.ReportCount)

		rec = app.do(http.MethodPost, "/v1/posts/"+post.ID+"/report", otherToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("mark duplicate", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/posts/"+history.ID+"/duplicate", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got forum.Post
		unmarshal(t, rec, &got)
		assert.True(t, got.IsDuplicate)

		assert.Equal(t, []string{post.ID}, ids(t, ""))
		assert.ElementsMatch(t, []string{post.ID, history.ID}, ids(t, "?include_duplicates=true"))

		rec = app.do(http.MethodPost, "/v1/posts/"+history.ID+"/duplicate", adminToken, []byte(`{"is_duplicate":false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &got)
		assert.False(t, got.IsDuplicate)
	})

	t.Run("admin deletes", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/posts/"+history.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		assert.Equal(t, []string{post.ID}, ids(t, "?include_duplicates=true"))
	})
}

func TestForumAnswersAndVotes(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "student1", "s1@example.com", false)
	other := app.createUser(t, "student2", "s2@example.com", false)
	token, otherToken := app.getToken(t, usr), app.getToken(t, other)

	rec := app.do(http.MethodPost, "/v1/posts", token, []byte(`{"title":"Integrals","content":"How do I integrate x^2?"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post forum.Post
	unmarshal(t, rec, &post)

	app.run(t, []httpTest{
		{name: "answer empty", method: http.MethodPost, path: "/v1/posts/" + post.ID + "/answers", token: otherToken, body: []byte(`{"answer":"  "}`), wantCode: http.StatusBadRequest},
		{name: "answer unknown post", method: http.MethodPost, path: "/v1/posts/unknown/answers", token: otherToken, body: []byte(`{"answer":"x^3/3"}`), wantCode: http.StatusNotFound},
	})

	rec = app.do(http.MethodPost, "/v1/posts/"+post.ID+"/answers", otherToken, []byte(`{"answer":" x^3/3 + C "}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ans forum.Answer
	unmarshal(t, rec, &ans)
	assert.Equal(t, "x^3/3 + C", ans.Answer)
	assert.Equal(t, post.ID, ans.PostID)
	assert.Equal(t, "student2", ans.Author)

	t.Run("retrieve with answers", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/posts/"+post.ID, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got forum.Post
		unmarshal(t, rec, &got)
		require.Len(t, got.Answers, 1)
		assert.Equal(t, ans.ID, got.Answers[0].ID)
	})

	voteResult := func(up, down int, vt forum.VoteType) []byte {
		return marchallObj(t, forum.NewVoteResult(forum.Tally{Upvote: up, Downvote: down}, vt))
	}
	postVote := "/v1/posts/" + post.ID + "/vote"
	answerVote := "/v1/answers/" + ans.ID + "/vote"

	app.run(t, []httpTest{
		{name: "vote invalid type", method: http.MethodPost, path: postVote, token: otherToken, body: []byte(`{"vote_type":"sideways"}`), wantCode: http.StatusBadRequest},
		{name: "post upvote", method: http.MethodPost, path: postVote, token: otherToken, body: []byte(`{"vote_type":"upvote"}`), wantData: voteResult(1, 0, forum.Upvote)},
		{name: "post upvote by owner", method: http.MethodPost, path: postVote, token: token, body: []byte(`{"vote_type":"UPVOTE"}`), wantData: voteResult(2, 0, forum.Upvote)},
		{name: "post switch to downvote", method: http.MethodPost, path: postVote, token: otherToken, body: []byte(`{"vote_type":"downvote"}`), wantData: voteResult(1, 1, forum.Downvote)},
		{name: "post withdraw downvote", method: http.MethodPost, path: postVote, token: otherToken, body: []byte(`{"vote_type":"downvote"}`), wantData: voteResult(1, 0, forum.NoVote)},
		{name: "post user vote", method: http.MethodGet, path: postVote, token: token, wantData: voteResult(1, 0, forum.Upvote)},
		{name: "post user vote none", method: http.MethodGet, path: postVote, token: otherToken, wantData: voteResult(1, 0, forum.NoVote)},
		{name: "answer downvote", method: http.MethodPost, path: answerVote, token: token, body: []byte(`{"vote_type":"downvote"}`), wantData: voteResult(0, 1, forum.Downvote)},
		{name: "answer user vote", method: http.MethodGet, path: answerVote, token: token, wantData: voteResult(0, 1, forum.Downvote)},
		{name: "answer unknown", method: http.MethodGet, path: "/v1/answers/unknown/vote", token: token, wantCode: http.StatusNotFound},
		{name: "delete answer by other user", method: http.MethodDelete, path: "/v1/answers/" + ans.ID, token: token, wantCode: http.StatusForbidden},
		{name: "delete answer", method: http.MethodDelete, path: "/v1/answers/" + ans.ID, token: otherToken, wantCode: http.StatusNoContent},
		{name: "deleted answer", method: http.MethodGet, path: answerVote, token: token, wantCode: http.StatusNotFound},
	})
}
