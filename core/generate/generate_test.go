package generate

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/quiz"
	testutil "github.com/etudier/etudier/tests"
)

type fakeGenerator struct {
	text  string
	err   error
	calls [][]core.Part
}

func (g *fakeGenerator) Generate(_ context.Context, parts ...core.Part) (string, error) {
	g.calls = append(g.calls, parts)
	return g.text, g.err
}

type fakeJSONGenerator struct {
	fakeGenerator
	jsonCalls int
}

func (g *fakeJSONGenerator) GenerateJSON(ctx context.Context, parts ...core.Part) (string, error) {
	g.jsonCalls++
	return g.Generate(ctx, parts...)
}

type mapCache map[string][]ModuleSuggestion

func (c mapCache) GetModules(_ context.Context, key string) ([]ModuleSuggestion, bool) {
	mods, ok := c[key]
	return mods, ok
}

func (c mapCache) SetModules(_ context.Context, key string, mods []ModuleSuggestion) { c[key] = mods }

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare", in: ` {"a":1} `, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "plain fence", in: "```\n[1, 2]\n```", want: `[1, 2]`},
		{name: "single line", in: "```json{\"a\":1}```", want: `{"a":1}`},
		{name: "no tag, one line", in: "```{\"a\":1}\n```", want: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestParseFlashcards(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     FlashcardDraft
		rejected string
	}{
		{
			name: "deck",
			text: `{"title":" Capitals ","description":"d","cards":[{"question":"France?","answer":"Paris"},{"question":"","answer":"x"}]}`,
			want: FlashcardDraft{Title: "Capitals", Description: "d", Cards: []flashcard.Card{{Question: "France?", Answer: "Paris"}}},
		},
		{
			name: "bare list of cards",
			text: `[{"question":"France?","answer":"Paris"},{"question":"DRC?","answer":"Kinshasa"}]`,
			want: FlashcardDraft{Cards: []flashcard.Card{{Question: "France?", Answer: "Paris"}, {Question: "DRC?", Answer: "Kinshasa"}}},
		},
		{name: "refused", text: `{"error":"not a study subject"}`, rejected: "not a study subject"},
		{name: "garbage", text: `Sure! Here are your cards`, rejected: ErrEmptyResult.Error()},
		{name: "no cards", text: `{"title":"t","cards":[]}`, rejected: ErrEmptyResult.Error()},
		{name: "empty list", text: `[]`, rejected: ErrEmptyResult.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlashcards(tt.text)
			if tt.rejected != "" {
				require.True(t, IsRejected(err), "err = %v", err)
				assert.Equal(t, tt.rejected, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuiz(t *testing.T) {
	text := `{
		"title": "Arithmetic",
		"quizzes": [
			{"question": "2+2?", "answers": ["3", "4"], "correct_answer": 1},
			{"question": "3+3?", "userAnswers": ["6", "7"], "correct_answer": "0"},
			{"question": "broken", "answers": ["1", "2"], "correct_answer": 9},
			{"question": "no index", "answers": ["1", "2"], "correct_answer": null},
			{"question": "missing index", "answers": ["1", "2", "3", "4"]}
		],
		"resources": [
			{"title": "Khan", "link": "https://khanacademy.org"},
			{"title": "bad", "link": "khanacademy.org"}
		]
	}`
	draft, err := parseQuiz(text)
	require.NoError(t, err)
	assert.Equal(t, "Arithmetic", draft.Title)
	assert.Equal(t, []quiz.Question{
		{Question: "2+2?", Answers: []string{"3", "4"}, CorrectAnswer: 1},
		{Question: "3+3?", Answers: []string{"6", "7"}, CorrectAnswer: 0},
	}, draft.Questions)
	assert.Equal(t, []quiz.Resource{{Title: "Khan", Link: "https://khanacademy.org"}}, draft.Resources)

	draft, err = parseQuiz(`[{"questions":[{"question":"q","answers":["a","b"],"correct_answer":1.0}]}]`)
	require.NoError(t, err)
	assert.Len(t, draft.Questions, 1)
	assert.Equal(t, []quiz.Resource{}, draft.Resources)

	_, err = parseQuiz(`{"error":"I cannot quiz that"}`)
	assert.True(t, IsRejected(err))
	_, err = parseQuiz(`{"quizzes":[{"question":"q","answers":["a"],"correct_answer":0}]}`)
	assert.True(t, IsRejected(err))
	_, err = parseQuiz(`{"quizzes":[{"question":"2+2?","answers":["3","4","5","6"]}]}`)
	assert.True(t, IsRejected(err), "a question without an answer key is dropped")
}

func TestParseModules(t *testing.T) {
	mods, err := parseModules(`[
		{"title":"Attention is all you need","link":"https://arxiv.org/abs/1706.03762","author":"Vaswani"},
		{"title":"Duplicate","link":"https://arxiv.org/abs/1706.03762"},
		{"title":"","link":"https://example.org"},
		{"title":"Search page","link":"scholar.google.com"}
	]`)
	require.NoError(t, err)
	assert.Equal(t, []ModuleSuggestion{
		{Title: "Attention is all you need", Link: "https://arxiv.org/abs/1706.03762", Author: "Vaswani"},
	}, mods)

	_, err = parseModules(`{"error":"nothing matches"}`)
	require.True(t, IsRejected(err))
	assert.Equal(t, "nothing matches", err.Error())

	_, err = parseModules(`[]`)
	assert.True(t, IsRejected(err))
}

func TestCheckPDF(t *testing.T) {
	pdf := []byte("%PDF-1.7\n%âãÏÓ\n1 0 obj")
	tests := []struct {
		name    string
		data    []byte
		maxSize int64
		wantErr bool
	}{
		{name: "pdf", data: pdf, maxSize: 1 << 20},
		{name: "no limit", data: pdf},
		{name: "empty", data: nil, wantErr: true},
		{name: "too big", data: pdf, maxSize: 8, wantErr: true},
		{name: "png", data: []byte("\x89PNG\r\n\x1a\n"), wantErr: true},
		{name: "text", data: []byte("hello %PDF-"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPDF(tt.data, tt.maxSize)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			assert.True(t, errors.As(err, &vErr), "err = %v", err)
		})
	}
}

func TestService_Flashcards(t *testing.T) {
	gen := &fakeJSONGenerator{fakeGenerator: fakeGenerator{
		text: "```json\n{\"title\":\"Capitals\",\"cards\":[{\"question\":\"France?\",\"answer\":\"Paris\"}]}\n```",
	}}
	svc := NewService(gen, nil, testutil.NopLogger{}, 0)

	draft, err := svc.Flashcards(context.Background(), Prompt{Prompt: "european capitals"})
	require.NoError(t, err)
	assert.Equal(t, "Capitals", draft.Title)
	assert.Equal(t, 1, gen.jsonCalls, "JSON mode is used when available")
	require.Len(t, gen.calls, 1)
	assert.True(t, strings.HasSuffix(gen.calls[0][0].Text, "Prompt: european capitals"))

	gen.err = errors.New("quota exceeded")
	_, err = svc.Quiz(context.Background(), Prompt{Prompt: "european capitals"})
	assert.Error(t, err)
	assert.False(t, IsRejected(err))
}

func TestService_ModulesCache(t *testing.T) {
	gen := &fakeGenerator{text: `[{"title":"Linear algebra","link":"https://ocw.mit.edu/18-06"}]`}
	cache := mapCache{}
	svc := NewService(gen, cache, testutil.NopLogger{}, 0)
	ctx := context.Background()

	mods, err := svc.Modules(ctx, ModuleSearch{Prompt: "Linear Algebra", Since: DefaultSince})
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Contains(t, gen.calls[0][0].Text, "published after 2020-01-01")
	assert.Len(t, cache, 1)

	again, err := svc.Modules(ctx, ModuleSearch{Prompt: "linear algebra", Since: DefaultSince})
	require.NoError(t, err)
	assert.Equal(t, mods, again)
	assert.Len(t, gen.calls, 1, "served from the cache")

	_, err = svc.Modules(ctx, ModuleSearch{Prompt: "linear algebra", Since: "2023-01-01"})
	require.NoError(t, err)
	assert.Len(t, gen.calls, 2)

	gen.text = `{"error":"nothing matches"}`
	_, err = svc.Modules(ctx, ModuleSearch{Prompt: "gibberish", Since: DefaultSince})
	assert.True(t, IsRejected(err))
	assert.Len(t, cache, 2, "rejections are not cached")
}

func TestService_Summarize(t *testing.T) {
	gen := &fakeGenerator{text: "  # Summary\n- point  "}
	svc := NewService(gen, nil, testutil.NopLogger{}, 1<<20)
	pdf := []byte("%PDF-1.4\n1 0 obj")

	sum, err := svc.Summarize(context.Background(), "notes.pdf", pdf)
	require.NoError(t, err)
	assert.Equal(t, Summary{Filename: "notes.pdf", Summary: "# Summary\n- point"}, sum)
	require.Len(t, gen.calls[0], 2)
	assert.Equal(t, "application/pdf", gen.calls[0][0].MIMEType)
	assert.Equal(t, pdf, gen.calls[0][0].Data)

	gen.text = " "
	_, err = svc.Summarize(context.Background(), "notes.pdf", pdf)
	assert.True(t, IsRejected(err))

	_, err = svc.Summarize(context.Background(), "notes.txt", []byte("plain text"))
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Len(t, gen.calls, 2, "invalid documents never reach the model")
}

func TestModuleSearch_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	ms := ModuleSearch{Prompt: " transformers "}
	require.NoError(t, ms.Validate(validate))
	assert.Equal(t, "transformers", ms.Prompt)
	assert.Equal(t, DefaultSince, ms.Since)

	ms = ModuleSearch{Prompt: "transformers", Since: "last year"}
	assert.Error(t, ms.Validate(validate))
}
