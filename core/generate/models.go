package generate

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/quiz"
)

// DefaultSince is the oldest publication date of suggested modules when none is given.
const DefaultSince = "2020-01-01"

type (
	// Prompt is what a user asks the model for.
	Prompt struct {
		Prompt string `json:"prompt" validate:"required,max=2000"`
	}

	ModuleSearch struct {
		Prompt string `json:"prompt" validate:"required,max=2000"`
		Since  string `json:"since" validate:"omitempty,datetime=2006-01-02"`
	}

	// FlashcardDraft is a generated deck, to be reviewed then saved by the user.
	FlashcardDraft struct {
		Title       string           `json:"title"`
		Description string           `json:"description"`
		Cards       []flashcard.Card `json:"cards"`
	}

	// QuizDraft is a generated quiz, to be reviewed then saved by the user.
	QuizDraft struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Questions   []quiz.Question `json:"questions"`
		Resources   []quiz.Resource `json:"resources"`
	}

	// ModuleSuggestion is a generated learning resource, to be bookmarked by the user.
	ModuleSuggestion struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Link        string `json:"link"`
		Author      string `json:"author"`
	}

	// Summary is the markdown summary of a document.
	Summary struct {
		Filename string `json:"filename"`
		Summary  string `json:"summary"`
	}
)

func (p *Prompt) Validate(validate *validator.Validate) error {
	p.Prompt = core.CleanString(p.Prompt)
	return validate.Struct(p)
}

func (ms *ModuleSearch) Validate(validate *validator.Validate) error {
	ms.Prompt = core.CleanString(ms.Prompt)
	ms.Since = core.CleanString(ms.Since)
	if err := validate.Struct(ms); err != nil {
		return err
	}
	if ms.Since == "" {
		ms.Since = DefaultSince
	}
	return nil
}

// flexInt decodes a JSON number or a quoted number.
type flexInt int

func (fi *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*fi = -1
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*fi = -1
		return nil
	}
	*fi = flexInt(f)
	return nil
}

type (
	rawDeck struct {
		Error       string           `json:"error"`
		Title       string           `json:"title"`
		Description string           `json:"description"`
		Cards       []flashcard.Card `json:"cards"`

		// set when the model answers with a bare list of cards
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}

	rawQuestion struct {
		Question      string   `json:"question"`
		Answers       []string `json:"answers"`
		UserAnswers   []string `json:"userAnswers"`
		CorrectAnswer *flexInt `json:"correct_answer"`
	}

	rawQuiz struct {
		Error       string          `json:"error"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Quizzes     []rawQuestion   `json:"quizzes"`
		Questions   []rawQuestion   `json:"questions"`
		Resources   []quiz.Resource `json:"resources"`
	}

	rawModule struct {
		Error string `json:"error"`
		ModuleSuggestion
	}
)

func (rq rawQuestion) question() quiz.Question {
	answers := rq.Answers
	if len(answers) == 0 {
		answers = rq.UserAnswers
	}
	correct := -1 // no index matches no answer
	if rq.CorrectAnswer != nil {
		correct = int(*rq.CorrectAnswer)
	}
	return quiz.CleanQuestion(quiz.Question{
		Question:      rq.Question,
		Answers:       answers,
		CorrectAnswer: correct,
	})
}
