package quiz

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

const (
	Table = "quiz"

	MinAnswers = 2
	MaxAnswers = 6

	// Unanswered marks a question skipped when grading.
	Unanswered = -1
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("quiz")
	ErrNoQuestions = errors.New("a quiz needs at least one valid question")
)

type (
	Question struct {
		Question      string   `json:"question" validate:"required,max=1000"`
		Answers       []string `json:"answers" validate:"min=2,max=6,dive,required,max=500"`
		CorrectAnswer int      `json:"correct_answer" validate:"min=0"`
	}

	Resource struct {
		Title string `json:"title" validate:"required,max=512"`
		Link  string `json:"link" validate:"required,httpurl,max=2048"`
	}

	// Quiz is a multiple choice quiz; every quiz is public.
	Quiz struct {
		ID          string     `json:"id" db:"id"`
		UserID      string     `json:"user_id" db:"user_id"`
		Author      string     `json:"author" db:"author"` // username of the owner
		Title       string     `json:"title" db:"title"`
		Description string     `json:"description" db:"description"`
		Questions   []Question `json:"questions" db:"questions"`
		Resources   []Resource `json:"resources" db:"resources"`
		CreatedAt   time.Time  `json:"created_at" db:"created_at"` // UTC
	}

	// Result is the outcome of grading a set of answers; Correct[i] tells whether question i was right.
	Result struct {
		Score   int    `json:"score"`
		Total   int    `json:"total"`
		Correct []bool `json:"correct"`
	}
)

// Valid reports whether the question can be asked: a non-empty question, 2 to 6 non-empty answers
// and a correct answer pointing at one of them.
func (q Question) Valid() bool {
	if q.Question == "" || len(q.Answers) < MinAnswers || len(q.Answers) > MaxAnswers {
		return false
	}
	for _, a := range q.Answers {
		if a == "" {
			return false
		}
	}
	return q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Answers)
}

func CleanQuestion(q Question) Question {
	answers := make([]string, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = core.CleanString(a)
	}
	return Question{Question: core.CleanString(q.Question), Answers: answers, CorrectAnswer: q.CorrectAnswer}
}

// Grade scores answers against the quiz questions. Missing or out of range answers count as wrong.
func (qz Quiz) Grade(answers []int) Result {
	res := Result{Total: len(qz.Questions), Correct: make([]bool, len(qz.Questions))}
	for i, q := range qz.Questions {
		ans := Unanswered
		if i < len(answers) {
			ans = answers[i]
		}
		if ans != Unanswered && ans == q.CorrectAnswer {
			res.Correct[i] = true
			res.Score++
		}
	}
	return res
}

type NewQuiz struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=5000"`
	Questions   []Question `json:"questions" validate:"required,min=1,max=100,dive"`
	Resources   []Resource `json:"resources" validate:"max=20,dive"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	for i := range nq.Questions {
		nq.Questions[i] = CleanQuestion(nq.Questions[i])
	}
	for i := range nq.Resources {
		nq.Resources[i].Title = core.CleanString(nq.Resources[i].Title)
		nq.Resources[i].Link = core.CleanString(nq.Resources[i].Link)
	}
	if err := validate.Struct(nq); err != nil {
		return err
	}
	for i, q := range nq.Questions {
		if !q.Valid() {
			return core.NewValidationError(nil, core.FieldError{
				Field: "questions",
				Error: "question " + strconv.Itoa(i+1) + " has no valid correct answer",
			})
		}
	}
	return nil
}

// Answers is the payload of a grading request.
type Answers struct {
	Answers []int `json:"answers" validate:"required"`
}

type (
	Repository interface {
		// ListQuizzes returns every quiz, newest first, with its author.
		ListQuizzes(ctx context.Context) ([]Quiz, error)
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		CreateQuiz(ctx context.Context, qz Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		pub    core.ChangePublisher
		logger core.Logger
	}
)

func NewService(repo Repository, pub core.ChangePublisher, logger core.Logger) *Service {
	return &Service{repo: repo, pub: pub, logger: logger}
}

func (svc *Service) List(ctx context.Context) ([]Quiz, error) {
	quizzes, err := svc.repo.ListQuizzes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing quizzes")
	}
	return quizzes, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *Service) Create(ctx context.Context, userID string, nq NewQuiz) (Quiz, error) {
	questions := make([]Question, 0, len(nq.Questions))
	for _, q := range nq.Questions {
		if q.Valid() {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return Quiz{}, core.NewValidationError(ErrNoQuestions, core.FieldError{Field: "questions", Error: ErrNoQuestions.Error()})
	}
	resources := nq.Resources
	if resources == nil {
		resources = []Resource{}
	}

	qz, err := svc.repo.CreateQuiz(ctx, Quiz{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       nq.Title,
		Description: nq.Description,
		Questions:   questions,
		Resources:   resources,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Quiz{}, errors.Wrap(err, "creating quiz")
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(Table, core.ChangeInsert, qz.ID, qz.UserID, true /* public */, qz))
	return qz, nil
}

// Delete removes the quiz; only its owner may do so.
func (svc *Service) Delete(ctx context.Context, qz Quiz, userID string) error {
	if qz.UserID != userID {
		return core.ErrForbidden
	}
	if err := svc.repo.DeleteQuiz(ctx, qz.ID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(Table, core.ChangeDelete, qz.ID, qz.UserID, true /* public */, nil))
	return nil
}

// Grade scores the answers of the user; results are not stored.
func (svc *Service) Grade(ctx context.Context, id string, answers []int) (Result, error) {
	qz, err := svc.repo.GetQuiz(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return qz.Grade(answers), nil
}
