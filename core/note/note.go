package note

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

const Table = "note"

var (
	// errors
	ErrNotFound = core.NewNotFoundError("note")

	OrderingFields  = []string{"updated_at", "created_at", "title"}
	DefaultOrdering = []core.DBOrdering{{Field: "updated_at", Ascending: false}}
)

// Note is a rich text note; HTML is stored as produced by the editor.
type Note struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	HTML      string    `json:"html" db:"html"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewNote struct {
	Title string `json:"title" validate:"required,max=255"`
	HTML  string `json:"html" validate:"max=1000000"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	return validate.Struct(nn)
}

type UpdateNote struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=255"`
	HTML  *string `json:"html" validate:"omitempty,max=1000000"`
}

func (un *UpdateNote) Validate(validate *validator.Validate) error {
	if un.Title != nil {
		title := core.CleanString(*un.Title)
		un.Title = &title
	}
	return validate.Struct(un)
}

type ListFilter struct {
	Search   string
	Ordering []core.DBOrdering
}

func (f ListFilter) Matches(n Note) bool {
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.HTML), q)
}

type (
	Repository interface {
		ListNotes(ctx context.Context, userID string, filter ListFilter) ([]Note, error)
		GetNote(ctx context.Context, userID, id string) (Note, error)
		CreateNote(ctx context.Context, n Note) (Note, error)
		UpdateNote(ctx context.Context, n Note) (Note, error)
		DeleteNote(ctx context.Context, userID, id string) error
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

func (svc *Service) List(ctx context.Context, userID string, filter ListFilter) ([]Note, error) {
	if len(filter.Ordering) == 0 {
		filter.Ordering = DefaultOrdering
	}
	notes, err := svc.repo.ListNotes(ctx, userID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "listing notes")
	}
	return notes, nil
}

func (svc *Service) Get(ctx context.Context, userID, id string) (Note, error) {
	return svc.repo.GetNote(ctx, userID, id)
}

func (svc *Service) Create(ctx context.Context, userID string, nn NewNote) (Note, error) {
	now := time.Now().UTC()
	n, err := svc.repo.CreateNote(ctx, Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     nn.Title,
		HTML:      nn.HTML,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Note{}, errors.Wrap(err, "creating note")
	}
	svc.publish(ctx, core.ChangeInsert, n)
	return n, nil
}

func (svc *Service) Update(ctx context.Context, n Note, un UpdateNote) (Note, error) {
	if un.Title != nil {
		n.Title = *un.Title
	}
	if un.HTML != nil {
		n.HTML = *un.HTML
	}
	n.UpdatedAt = time.Now().UTC()

	n, err := svc.repo.UpdateNote(ctx, n)
	if err != nil {
		return Note{}, errors.Wrap(err, "updating note")
	}
	svc.publish(ctx, core.ChangeUpdate, n)
	return n, nil
}

func (svc *Service) Delete(ctx context.Context, n Note) error {
	if err := svc.repo.DeleteNote(ctx, n.UserID, n.ID); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	svc.publish(ctx, core.ChangeDelete, n)
	return nil
}

func (svc *Service) publish(ctx context.Context, typ core.ChangeType, n Note) {
	var record interface{}
	if typ != core.ChangeDelete {
		record = n
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(Table, typ, n.ID, n.UserID, false /* public */, record))
}
