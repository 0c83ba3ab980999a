package inmemdb

import (
	"context"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/module"
	"github.com/etudier/etudier/core/quiz"
)

var newestFirst = []core.DBOrdering{{Field: "created_at"}}

// flashcards

type flashcardRepository struct {
	db *DB
}

func NewFlashcardRepository(db *DB) flashcard.Repository {
	return &flashcardRepository{db: db}
}

func (repo *flashcardRepository) ListDecks(_ context.Context, userID string) ([]flashcard.Deck, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	decks := make([]flashcard.Deck, 0)
	for _, d := range repo.db.flashcard {
		if d.UserID == userID {
			decks = append(decks, *d)
		}
	}
	sortBy(decks, newestFirst, func(a, b flashcard.Deck, _ string) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return decks, nil
}

func (repo *flashcardRepository) GetDeck(_ context.Context, userID, id string) (flashcard.Deck, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.flashcard[id]; ok && d.UserID == userID {
		return *d, nil
	}
	return flashcard.Deck{}, flashcard.ErrNotFound
}

func (repo *flashcardRepository) CreateDeck(_ context.Context, d flashcard.Deck) (flashcard.Deck, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	d.Cards = append([]flashcard.Card{}, d.Cards...)
	repo.db.flashcard[d.ID] = &d
	return d, nil
}

func (repo *flashcardRepository) DeleteDeck(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if d, ok := repo.db.flashcard[id]; !ok || d.UserID != userID {
		return flashcard.ErrNotFound
	}
	delete(repo.db.flashcard, id)
	return nil
}

// quizzes

type quizRepository struct {
	db *DB
}

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) ListQuizzes(_ context.Context) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quizzes := make([]quiz.Quiz, 0, len(repo.db.quiz))
	for _, qz := range repo.db.quiz {
		q := *qz
		q.Author = repo.db.username(q.UserID)
		quizzes = append(quizzes, q)
	}
	sortBy(quizzes, newestFirst, func(a, b quiz.Quiz, _ string) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return quizzes, nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if qz, ok := repo.db.quiz[id]; ok {
		q := *qz
		q.Author = repo.db.username(q.UserID)
		return q, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) CreateQuiz(_ context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	qz.Questions = append([]quiz.Question{}, qz.Questions...)
	qz.Resources = append([]quiz.Resource{}, qz.Resources...)
	repo.db.quiz[qz.ID] = &qz
	qz.Author = repo.db.username(qz.UserID)
	return qz, nil
}

func (repo *quizRepository) DeleteQuiz(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.quiz[id]; !ok {
		return quiz.ErrNotFound
	}
	delete(repo.db.quiz, id)
	return nil
}

// modules

type moduleRepository struct {
	db *DB
}

func NewModuleRepository(db *DB) module.Repository {
	return &moduleRepository{db: db}
}

func (repo *moduleRepository) ListModules(_ context.Context, userID string) ([]module.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	modules := make([]module.Module, 0)
	for _, m := range repo.db.module {
		if m.UserID == userID {
			modules = append(modules, *m)
		}
	}
	sortBy(modules, newestFirst, func(a, b module.Module, _ string) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return modules, nil
}

func (repo *moduleRepository) GetModule(_ context.Context, userID, id string) (module.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.module[id]; ok && m.UserID == userID {
		return *m, nil
	}
	return module.Module{}, module.ErrNotFound
}

func (repo *moduleRepository) CreateModule(_ context.Context, m module.Module) (module.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.module[m.ID] = &m
	return m, nil
}

func (repo *moduleRepository) DeleteModule(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if m, ok := repo.db.module[id]; !ok || m.UserID != userID {
		return module.ErrNotFound
	}
	delete(repo.db.module, id)
	return nil
}
