package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/module"
	"github.com/etudier/etudier/core/quiz"
)

// flashcards

const deckColumns = `id, user_id, title, description, cards, created_at`

type deckRow struct {
	ID          string                  `db:"id"`
	UserID      string                  `db:"user_id"`
	Title       string                  `db:"title"`
	Description string                  `db:"description"`
	Cards       jsonb[[]flashcard.Card] `db:"cards"`
	CreatedAt   time.Time               `db:"created_at"`
}

func (r deckRow) deck() flashcard.Deck {
	d := flashcard.Deck{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Cards:       r.Cards.V,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if d.Cards == nil {
		d.Cards = []flashcard.Card{}
	}
	return d
}

type flashcardRepository struct {
	db *sqlx.DB
}

func NewFlashcardRepository(db *sqlx.DB) flashcard.Repository {
	return &flashcardRepository{db: db}
}

func (repo *flashcardRepository) ListDecks(ctx context.Context, userID string) ([]flashcard.Deck, error) {
	var rows []deckRow
	q := `SELECT ` + deckColumns + ` FROM flashcard WHERE user_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting decks")
	}
	decks := make([]flashcard.Deck, len(rows))
	for i, r := range rows {
		decks[i] = r.deck()
	}
	return decks, nil
}

func (repo *flashcardRepository) GetDeck(ctx context.Context, userID, id string) (flashcard.Deck, error) {
	var row deckRow
	q := `SELECT ` + deckColumns + ` FROM flashcard WHERE id = $1 AND user_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return flashcard.Deck{}, flashcard.ErrNotFound
		}
		return flashcard.Deck{}, errors.Wrap(err, "selecting deck")
	}
	return row.deck(), nil
}

func (repo *flashcardRepository) CreateDeck(ctx context.Context, d flashcard.Deck) (flashcard.Deck, error) {
	q := `INSERT INTO flashcard (` + deckColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, q, d.ID, d.UserID, d.Title, d.Description, jsonb[[]flashcard.Card]{d.Cards}, d.CreatedAt)
	if err != nil {
		return flashcard.Deck{}, errors.Wrap(err, "inserting deck")
	}
	return d, nil
}

func (repo *flashcardRepository) DeleteDeck(ctx context.Context, userID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM flashcard WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrap(err, "deleting deck")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return flashcard.ErrNotFound
	}
	return nil
}

// quizzes

const quizSelect = `SELECT q.id, q.user_id, COALESCE(u.username, '') AS author, q.title, q.description, q.questions,
	q.resources, q.created_at FROM quiz q LEFT JOIN "user" u ON u.id = q.user_id`

type quizRow struct {
	ID          string                 `db:"id"`
	UserID      string                 `db:"user_id"`
	Author      string                 `db:"author"`
	Title       string                 `db:"title"`
	Description string                 `db:"description"`
	Questions   jsonb[[]quiz.Question] `db:"questions"`
	Resources   jsonb[[]quiz.Resource] `db:"resources"`
	CreatedAt   time.Time              `db:"created_at"`
}

func (r quizRow) quiz() quiz.Quiz {
	qz := quiz.Quiz{
		ID:          r.ID,
		UserID:      r.UserID,
		Author:      r.Author,
		Title:       r.Title,
		Description: r.Description,
		Questions:   r.Questions.V,
		Resources:   r.Resources.V,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if qz.Questions == nil {
		qz.Questions = []quiz.Question{}
	}
	if qz.Resources == nil {
		qz.Resources = []quiz.Resource{}
	}
	return qz
}

type quizRepository struct {
	db *sqlx.DB
}

func NewQuizRepository(db *sqlx.DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) ListQuizzes(ctx context.Context) ([]quiz.Quiz, error) {
	var rows []quizRow
	if err := repo.db.SelectContext(ctx, &rows, quizSelect+` ORDER BY q.created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "selecting quizzes")
	}
	quizzes := make([]quiz.Quiz, len(rows))
	for i, r := range rows {
		quizzes[i] = r.quiz()
	}
	return quizzes, nil
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	var row quizRow
	if err := repo.db.GetContext(ctx, &row, quizSelect+` WHERE q.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Quiz{}, quiz.ErrNotFound
		}
		return quiz.Quiz{}, errors.Wrap(err, "selecting quiz")
	}
	return row.quiz(), nil
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	q := `INSERT INTO quiz (id, user_id, title, description, questions, resources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q, qz.ID, qz.UserID, qz.Title, qz.Description,
		jsonb[[]quiz.Question]{qz.Questions}, jsonb[[]quiz.Resource]{qz.Resources}, qz.CreatedAt)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return repo.GetQuiz(ctx, qz.ID)
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM quiz WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quiz.ErrNotFound
	}
	return nil
}

// modules

const moduleColumns = `id, user_id, title, description, link, author, created_at`

type moduleRepository struct {
	db *sqlx.DB
}

func NewModuleRepository(db *sqlx.DB) module.Repository {
	return &moduleRepository{db: db}
}

func (repo *moduleRepository) ListModules(ctx context.Context, userID string) ([]module.Module, error) {
	modules := make([]module.Module, 0)
	q := `SELECT ` + moduleColumns + ` FROM module WHERE user_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &modules, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting modules")
	}
	return modules, nil
}

func (repo *moduleRepository) GetModule(ctx context.Context, userID, id string) (module.Module, error) {
	var m module.Module
	q := `SELECT ` + moduleColumns + ` FROM module WHERE id = $1 AND user_id = $2`
	if err := repo.db.GetContext(ctx, &m, q, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return module.Module{}, module.ErrNotFound
		}
		return module.Module{}, errors.Wrap(err, "selecting module")
	}
	return m, nil
}

func (repo *moduleRepository) CreateModule(ctx context.Context, m module.Module) (module.Module, error) {
	q := `INSERT INTO module (` + moduleColumns + `) VALUES (:id, :user_id, :title, :description, :link, :author, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, m); err != nil {
		return module.Module{}, errors.Wrap(err, "inserting module")
	}
	return m, nil
}

func (repo *moduleRepository) DeleteModule(ctx context.Context, userID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM module WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrap(err, "deleting module")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return module.ErrNotFound
	}
	return nil
}
