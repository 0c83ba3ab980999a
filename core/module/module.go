package module

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

const Table = "module"

var (
	// errors
	ErrNotFound = core.NewNotFoundError("module")
)

// Module is a bookmarked learning resource.
type Module struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Link        string    `json:"link" db:"link"`
	Author      string    `json:"author" db:"author"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

type NewModule struct {
	Title       string `json:"title" validate:"required,max=512"`
	Description string `json:"description" validate:"max=5000"`
	Link        string `json:"link" validate:"required,httpurl,max=2048"`
	Author      string `json:"author" validate:"max=512"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.Link = core.CleanString(nm.Link)
	nm.Author = core.CleanString(nm.Author)
	return validate.Struct(nm)
}

type (
	Repository interface {
		ListModules(ctx context.Context, userID string) ([]Module, error)
		GetModule(ctx context.Context, userID, id string) (Module, error)
		CreateModule(ctx context.Context, m Module) (Module, error)
		DeleteModule(ctx context.Context, userID, id string) error
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

func (svc *Service) List(ctx context.Context, userID string) ([]Module, error) {
	modules, err := svc.repo.ListModules(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing modules")
	}
	return modules, nil
}

func (svc *Service) Get(ctx context.Context, userID, id string) (Module, error) {
	return svc.repo.GetModule(ctx, userID, id)
}

func (svc *Service) Create(ctx context.Context, userID string, nm NewModule) (Module, error) {
	m, err := svc.repo.CreateModule(ctx, Module{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       nm.Title,
		Description: nm.Description,
		Link:        nm.Link,
		Author:      nm.Author,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Module{}, errors.Wrap(err, "creating module")
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(Table, core.ChangeInsert, m.ID, m.UserID, false /* public */, m))
	return m, nil
}

func (svc *Service) Delete(ctx context.Context, m Module) error {
	if err := svc.repo.DeleteModule(ctx, m.UserID, m.ID); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(Table, core.ChangeDelete, m.ID, m.UserID, false /* public */, nil))
	return nil
}
