package inmemdb

import (
	"context"
	"strings"

	"github.com/etudier/etudier/core/note"
)

type noteRepository struct {
	db *DB
}

func NewNoteRepository(db *DB) note.Repository {
	return &noteRepository{db: db}
}

func (repo *noteRepository) ListNotes(_ context.Context, userID string, filter note.ListFilter) ([]note.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notes := make([]note.Note, 0)
	for _, n := range repo.db.note {
		if n.UserID == userID && filter.Matches(*n) {
			notes = append(notes, *n)
		}
	}
	sortBy(notes, filter.Ordering, func(a, b note.Note, field string) int {
		switch field {
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "title":
			return strings.Compare(a.Title, b.Title)
		}
		return 0
	})
	return notes, nil
}

func (repo *noteRepository) GetNote(_ context.Context, userID, id string) (note.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.note[id]; ok && n.UserID == userID {
		return *n, nil
	}
	return note.Note{}, note.ErrNotFound
}

func (repo *noteRepository) CreateNote(_ context.Context, n note.Note) (note.Note, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.note[n.ID] = &n
	return n, nil
}

func (repo *noteRepository) UpdateNote(_ context.Context, n note.Note) (note.Note, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.note[n.ID]
	if !ok || orig.UserID != n.UserID {
		return note.Note{}, note.ErrNotFound
	}
	n.CreatedAt = orig.CreatedAt
	repo.db.note[n.ID] = &n
	return n, nil
}

func (repo *noteRepository) DeleteNote(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if n, ok := repo.db.note[id]; !ok || n.UserID != userID {
		return note.ErrNotFound
	}
	delete(repo.db.note, id)
	return nil
}
