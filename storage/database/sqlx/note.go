package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core/note"
)

const noteColumns = `id, user_id, title, html, created_at, updated_at`

type noteRepository struct {
	db *sqlx.DB
}

func NewNoteRepository(db *sqlx.DB) note.Repository {
	return &noteRepository{db: db}
}

func (repo *noteRepository) ListNotes(ctx context.Context, userID string, filter note.ListFilter) ([]note.Note, error) {
	q := `SELECT ` + noteColumns + ` FROM note WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		q += ` AND (title ILIKE $2 OR html ILIKE $2)`
	}
	q += orderBy(filter.Ordering)

	notes := make([]note.Note, 0)
	if err := repo.db.SelectContext(ctx, &notes, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting notes")
	}
	return notes, nil
}

func (repo *noteRepository) GetNote(ctx context.Context, userID, id string) (note.Note, error) {
	var n note.Note
	q := `SELECT ` + noteColumns + ` FROM note WHERE id = $1 AND user_id = $2`
	if err := repo.db.GetContext(ctx, &n, q, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return note.Note{}, note.ErrNotFound
		}
		return note.Note{}, errors.Wrap(err, "selecting note")
	}
	return n, nil
}

func (repo *noteRepository) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	q := `INSERT INTO note (` + noteColumns + `) VALUES (:id, :user_id, :title, :html, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, n); err != nil {
		return note.Note{}, errors.Wrap(err, "inserting note")
	}
	return n, nil
}

func (repo *noteRepository) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	q := `UPDATE note SET title = :title, html = :html, updated_at = :updated_at WHERE id = :id AND user_id = :user_id`
	res, err := repo.db.NamedExecContext(ctx, q, n)
	if err != nil {
		return note.Note{}, errors.Wrap(err, "updating note")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return note.Note{}, note.ErrNotFound
	}
	return n, nil
}

func (repo *noteRepository) DeleteNote(ctx context.Context, userID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM note WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrap(err, "deleting note")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return note.ErrNotFound
	}
	return nil
}
