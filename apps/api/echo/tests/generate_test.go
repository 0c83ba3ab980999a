package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/etudier/etudier/apps/api/echo"
	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/generate"
	"github.com/etudier/etudier/core/quiz"
)

var pdfData = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")

func TestGenerateFlashcards(t *testing.T) {
	app := setup(t)
	token := app.getToken(t, app.createUser(t, "student1", "s1@example.com", false))
	path := "/v1/generate/flashcards"

	app.run(t, []httpTest{
		{name: "no token", method: http.MethodPost, path: path, body: []byte(`{"prompt":"capitals"}`), wantCode: http.StatusUnauthorized},
		{name: "no prompt", method: http.MethodPost, path: path, token: token, body: []byte(`{"prompt":"  "}`), wantCode: http.StatusBadRequest},
	})
	require.Zero(t, app.gen.calls)

	app.gen.answer("```json\n{\"title\":\"Capitals\",\"cards\":[{\"question\":\"France?\",\"answer\":\"Paris\"},{\"question\":\"\",\"answer\":\"nothing\"}]}\n```")
	app.run(t, []httpTest{
		{
			name:   "fenced answer",
			method: http.MethodPost,
			path:   path,
			token:  token,
			body:   []byte(`{"prompt":"European capitals"}`),
			wantData: marchallObj(t, generate.FlashcardDraft{
				Title: "Capitals",
				Cards: []flashcard.Card{{Question: "France?", Answer: "Paris"}},
			}),
		},
	})

	app.gen.answer(`{"error":"This prompt is not about studying."}`)
	app.run(t, []httpTest{
		{
			name:     "refused",
			method:   http.MethodPost,
			path:     path,
			token:    token,
			body:     []byte(`{"prompt":"tell me a joke"}`),
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, httpErr{Error: "This prompt is not about studying."}),
		},
	})

	app.gen.answer("not json at all")
	app.run(t, []httpTest{
		{name: "garbage", method: http.MethodPost, path: path, token: token, body: []byte(`{"prompt":"capitals"}`), wantCode: http.StatusUnprocessableEntity},
	})
}

func TestGenerateQuiz(t *testing.T) {
	app := setup(t)
	token := app.getToken(t, app.createUser(t, "student1", "s1@example.com", false))

	app.gen.answer(`{
		"title": "Arithmetic",
		"quizzes": [
			{"question": "2+2?", "answers": ["3", "4"], "correct_answer": "1"},
			{"question": "broken", "answers": ["only one"], "correct_answer": 0}
		],
		"resources": [{"title": "Khan Academy", "link": "https://www.khanacademy.org/math"}, {"title": "bad", "link": "nowhere"}]
	}`)
	app.run(t, []httpTest{
		{
			name:   "success",
			method: http.MethodPost,
			path:   "/v1/generate/quiz",
			token:  token,
			body:   []byte(`{"prompt":"arithmetic"}`),
			wantData: marchallObj(t, generate.QuizDraft{
				Title:     "Arithmetic",
				Questions: []quiz.Question{{Question: "2+2?", Answers: []string{"3", "4"}, CorrectAnswer: 1}},
				Resources: []quiz.Resource{{Title: "Khan Academy", Link: "https://www.khanacademy.org/math"}},
			}),
		},
	})
}

func TestGenerateModules(t *testing.T) {
	app := setup(t)
	token := app.getToken(t, app.createUser(t, "student1", "s1@example.com", false))
	path := "/v1/generate/modules"

	app.gen.answer(`[
		{"title": "Linear algebra", "link": "https://ocw.mit.edu/18-06", "author": "Gilbert Strang"},
		{"title": "Linear algebra again", "link": "https://ocw.mit.edu/18-06"},
		{"title": "No link"}
	]`)
	app.run(t, []httpTest{
		{name: "bad since", method: http.MethodPost, path: path, token: token, body: []byte(`{"prompt":"matrices","since":"last year"}`), wantCode: http.StatusBadRequest},
		{
			name:   "success",
			method: http.MethodPost,
			path:   path,
			token:  token,
			body:   []byte(`{"prompt":"matrices","since":"2021-09-01"}`),
			wantData: marchallList(t, generate.ModuleSuggestion{
				Title:  "Linear algebra",
				Link:   "https://ocw.mit.edu/18-06",
				Author: "Gilbert Strang",
			}),
		},
	})
}

func TestGenerateSummary(t *testing.T) {
	app := setup(t)
	token := app.getToken(t, app.createUser(t, "student1", "s1@example.com", false))
	path := "/v1/summaries"

	t.Run("no file", func(t *testing.T) {
		rec := app.doMultipart(t, path, token, map[string][]string{"name": {"x"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("not a pdf", func(t *testing.T) {
		rec := app.doMultipart(t, path, token, nil, formFile{"file", "notes.pdf", []byte("just some text")})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("no token", func(t *testing.T) {
		rec := app.doMultipart(t, path, "", nil, formFile{"file", "lecture.pdf", pdfData})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	})

	t.Run("success", func(t *testing.T) {
		app.gen.answer("  # Lecture 1\n\n- matter is made of atoms  ")
		rec := app.doMultipart(t, path, token, nil, formFile{"file", "lecture.pdf", pdfData})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sum generate.Summary
		unmarshal(t, rec, &sum)
		assert.Equal(t, generate.Summary{Filename: "lecture.pdf", Summary: "# Lecture 1\n\n- matter is made of atoms"}, sum)
	})

	t.Run("empty summary", func(t *testing.T) {
		app.gen.answer("   ")
		rec := app.doMultipart(t, path, token, nil, formFile{"file", "lecture.pdf", pdfData})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	})
}

func TestGenerateDisabled(t *testing.T) {
	app := setup(t, func(deps *echoapi.ServerDeps) { deps.GenerateSvc = nil })
	token := app.getToken(t, app.createUser(t, "student1", "s1@example.com", false))

	unavailable := marchallObj(t, httpErr{Error: "content generation is not configured"})
	app.run(t, []httpTest{
		{name: "flashcards", method: http.MethodPost, path: "/v1/generate/flashcards", token: token, body: []byte(`{"prompt":"x"}`), wantCode: http.StatusServiceUnavailable, wantData: unavailable},
		{name: "quiz", method: http.MethodPost, path: "/v1/generate/quiz", token: token, body: []byte(`{"prompt":"x"}`), wantCode: http.StatusServiceUnavailable, wantData: unavailable},
		{name: "modules", method: http.MethodPost, path: "/v1/generate/modules", token: token, body: []byte(`{"prompt":"x"}`), wantCode: http.StatusServiceUnavailable, wantData: unavailable},
		{name: "summaries", method: http.MethodPost, path: "/v1/summaries", token: token, wantCode: http.StatusServiceUnavailable, wantData: unavailable},
		{name: "no token first", method: http.MethodPost, path: "/v1/generate/quiz", body: []byte(`{"prompt":"x"}`), wantCode: http.StatusUnauthorized},
	})
}
