// Package generate turns user prompts into study material with a generative language model.
//
// Every flow sends a fixed instruction followed by the user prompt, strips the code fences the model
// tends to wrap its answer in, then decodes the JSON it was asked for. A model answering with
// {"error": "..."} refused the prompt, which is reported as a RejectedError.
package generate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/quiz"
)

const (
	pdfMIMEType   = "application/pdf"
	summaryPrompt = "Summarize this document"
)

var (
	// errors
	ErrNotPDF      = errors.New("only PDF files can be summarized")
	ErrEmptyResult = errors.New("the model returned nothing usable, please rephrase your prompt")

	pdfMagic = []byte("%PDF-")
)

// RejectedError is returned when the model refuses a prompt or answers with something unusable.
type RejectedError struct {
	Message string
}

func (err RejectedError) Error() string { return err.Message }

// IsRejected reports whether the root cause of err is a RejectedError.
func IsRejected(err error) bool {
	_, ok := errors.Cause(err).(*RejectedError)
	return ok
}

func rejected(msg string) error { return &RejectedError{Message: msg} }

// SearchCache keeps module suggestions per search.
type SearchCache interface {
	GetModules(ctx context.Context, key string) ([]ModuleSuggestion, bool)
	SetModules(ctx context.Context, key string, modules []ModuleSuggestion)
}

type Service struct {
	gen        core.Generator
	cache      SearchCache
	logger     core.Logger
	maxPDFSize int64
}

func NewService(gen core.Generator, cache SearchCache, logger core.Logger, maxPDFSize int64) *Service {
	return &Service{gen: gen, cache: cache, logger: logger, maxPDFSize: maxPDFSize}
}

// Flashcards drafts a deck of cards about the prompt.
func (svc *Service) Flashcards(ctx context.Context, p Prompt) (FlashcardDraft, error) {
	text, err := svc.generateJSON(ctx, flashcardsInstruction, p.Prompt)
	if err != nil {
		return FlashcardDraft{}, err
	}
	return parseFlashcards(text)
}

// Quiz drafts a multiple choice quiz about the prompt.
func (svc *Service) Quiz(ctx context.Context, p Prompt) (QuizDraft, error) {
	text, err := svc.generateJSON(ctx, quizInstruction, p.Prompt)
	if err != nil {
		return QuizDraft{}, err
	}
	return parseQuiz(text)
}

// Modules suggests academic resources about the prompt published after ms.Since.
// Results are cached per (prompt, since).
func (svc *Service) Modules(ctx context.Context, ms ModuleSearch) ([]ModuleSuggestion, error) {
	key := searchKey(ms)
	if svc.cache != nil {
		if mods, ok := svc.cache.GetModules(ctx, key); ok {
			return mods, nil
		}
	}

	text, err := svc.generateJSON(ctx, modulesInstruction, fmt.Sprintf("%s\nFilter: published after %s", ms.Prompt, ms.Since))
	if err != nil {
		return nil, err
	}
	mods, err := parseModules(text)
	if err != nil {
		return nil, err
	}

	if svc.cache != nil {
		svc.cache.SetModules(ctx, key, mods)
	}
	return mods, nil
}

// Summarize returns a markdown summary of a PDF document.
func (svc *Service) Summarize(ctx context.Context, filename string, data []byte) (Summary, error) {
	if err := CheckPDF(data, svc.maxPDFSize); err != nil {
		return Summary{}, err
	}
	text, err := svc.gen.Generate(ctx, core.BlobPart(data, pdfMIMEType), core.TextPart(summaryPrompt))
	if err != nil {
		return Summary{}, errors.Wrap(err, "summarizing document")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Summary{}, rejected(ErrEmptyResult.Error())
	}
	return Summary{Filename: filename, Summary: text}, nil
}

// CheckPDF checks the size of data and that it is a PDF document.
func CheckPDF(data []byte, maxSize int64) error {
	if len(data) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return core.NewValidationError(nil, core.FieldError{
			Field: "file",
			Error: fmt.Sprintf("file exceeds the maximum size of %dMB", maxSize>>20),
		})
	}
	if http.DetectContentType(data) != pdfMIMEType || !bytes.HasPrefix(data, pdfMagic) {
		return core.NewValidationError(ErrNotPDF, core.FieldError{Field: "file", Error: ErrNotPDF.Error()})
	}
	return nil
}

func (svc *Service) generateJSON(ctx context.Context, instruction, prompt string) (string, error) {
	parts := []core.Part{core.TextPart(instruction + "\n\nPrompt: " + prompt)}

	var (
		text string
		err  error
	)
	if jg, ok := svc.gen.(core.JSONGenerator); ok {
		text, err = jg.GenerateJSON(ctx, parts...)
	} else {
		text, err = svc.gen.Generate(ctx, parts...)
	}
	if err != nil {
		return "", errors.Wrap(err, "generating content")
	}
	return StripFences(text), nil
}

// StripFences removes the markdown code fence (```json ... ```) around a model answer.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], "{[") {
			text = text[nl+1:] // language tag
		} else {
			text = strings.TrimPrefix(text, "json")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

func parseFlashcards(text string) (FlashcardDraft, error) {
	var decks []rawDeck
	if strings.HasPrefix(text, "[") {
		if err := sonic.UnmarshalString(text, &decks); err != nil {
			return FlashcardDraft{}, rejected(ErrEmptyResult.Error())
		}
	} else {
		var d rawDeck
		if err := sonic.UnmarshalString(text, &d); err != nil {
			return FlashcardDraft{}, rejected(ErrEmptyResult.Error())
		}
		decks = append(decks, d)
	}
	if len(decks) == 0 {
		return FlashcardDraft{}, rejected(ErrEmptyResult.Error())
	}
	if msg := core.CleanString(decks[0].Error); msg != "" {
		return FlashcardDraft{}, rejected(msg)
	}

	draft := FlashcardDraft{
		Title:       core.CleanString(decks[0].Title),
		Description: core.CleanString(decks[0].Description),
	}
	for _, d := range decks {
		switch {
		case len(d.Cards) > 0:
			draft.Cards = append(draft.Cards, d.Cards...)
		case d.Question != "":
			draft.Cards = append(draft.Cards, flashcard.Card{Question: d.Question, Answer: d.Answer})
		}
	}
	draft.Cards = flashcard.CleanCards(draft.Cards)
	if len(draft.Cards) == 0 {
		return FlashcardDraft{}, rejected(ErrEmptyResult.Error())
	}
	return draft, nil
}

func parseQuiz(text string) (QuizDraft, error) {
	var rq rawQuiz
	if strings.HasPrefix(text, "[") {
		var list []rawQuiz
		if err := sonic.UnmarshalString(text, &list); err != nil || len(list) == 0 {
			return QuizDraft{}, rejected(ErrEmptyResult.Error())
		}
		rq = list[0]
	} else if err := sonic.UnmarshalString(text, &rq); err != nil {
		return QuizDraft{}, rejected(ErrEmptyResult.Error())
	}
	if msg := core.CleanString(rq.Error); msg != "" {
		return QuizDraft{}, rejected(msg)
	}

	draft := QuizDraft{
		Title:       core.CleanString(rq.Title),
		Description: core.CleanString(rq.Description),
		Questions:   []quiz.Question{},
		Resources:   []quiz.Resource{},
	}
	for _, raw := range append(rq.Quizzes, rq.Questions...) {
		if q := raw.question(); q.Valid() {
			draft.Questions = append(draft.Questions, q)
		}
	}
	for _, r := range rq.Resources {
		r.Title = core.CleanString(r.Title)
		r.Link = core.CleanString(r.Link)
		if r.Title != "" && core.IsHTTPURL(r.Link) {
			draft.Resources = append(draft.Resources, r)
		}
	}
	if len(draft.Questions) == 0 {
		return QuizDraft{}, rejected(ErrEmptyResult.Error())
	}
	return draft, nil
}

func parseModules(text string) ([]ModuleSuggestion, error) {
	var raws []rawModule
	if strings.HasPrefix(text, "[") {
		if err := sonic.UnmarshalString(text, &raws); err != nil {
			return nil, rejected(ErrEmptyResult.Error())
		}
	} else {
		var rm rawModule
		if err := sonic.UnmarshalString(text, &rm); err != nil {
			return nil, rejected(ErrEmptyResult.Error())
		}
		raws = append(raws, rm)
	}
	if len(raws) > 0 {
		if msg := core.CleanString(raws[0].Error); msg != "" {
			return nil, rejected(msg)
		}
	}

	seen := make(map[string]struct{}, len(raws))
	mods := make([]ModuleSuggestion, 0, len(raws))
	for _, rm := range raws {
		m := ModuleSuggestion{
			Title:       core.CleanString(rm.Title),
			Description: core.CleanString(rm.Description),
			Link:        core.CleanString(rm.Link),
			Author:      core.CleanString(rm.Author),
		}
		if m.Title == "" || !core.IsHTTPURL(m.Link) {
			continue
		}
		if _, ok := seen[m.Link]; ok {
			continue
		}
		seen[m.Link] = struct{}{}
		mods = append(mods, m)
	}
	if len(mods) == 0 {
		return nil, rejected(ErrEmptyResult.Error())
	}
	return mods, nil
}

func searchKey(ms ModuleSearch) string {
	sum := sha256.Sum256([]byte(strings.ToLower(ms.Prompt) + "\x00" + ms.Since))
	return hex.EncodeToString(sum[:])
}
