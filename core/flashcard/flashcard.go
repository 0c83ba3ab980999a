package flashcard

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

const Table = "flashcard"

var (
	// errors
	ErrNotFound = core.NewNotFoundError("flashcard deck")
	ErrNoCards  = errors.New("a deck needs at least one card with a question and an answer")
)

type Card struct {
	Question string `json:"question" validate:"required,max=1000"`
	Answer   string `json:"answer" validate:"required,max=2000"`
}

// Deck is a titled set of question/answer cards.
type Deck struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Cards       []Card    `json:"cards" db:"cards"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

type NewDeck struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Cards       []Card `json:"cards" validate:"required,min=1,max=200,dive"`
}

// Validate trims every field; a card left without a question or an answer is an error.
func (nd *NewDeck) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	nd.Description = core.CleanString(nd.Description)
	for i := range nd.Cards {
		nd.Cards[i] = CleanCard(nd.Cards[i])
	}
	return validate.Struct(nd)
}

func CleanCard(c Card) Card {
	return Card{Question: core.CleanString(c.Question), Answer: core.CleanString(c.Answer)}
}

// CleanCards trims the cards and drops the incomplete ones.
func CleanCards(cards []Card) []Card {
	cleaned := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c = CleanCard(c); c.Question != "" && c.Answer != "" {
			cleaned = append(cleaned, c)
		}
	}
	return cleaned
}

type (
	Repository interface {
		ListDecks(ctx context.Context, userID string) ([]Deck, error)
		GetDeck(ctx context.Context, userID, id string) (Deck, error)
		CreateDeck(ctx context.Context, d Deck) (Deck, error)
		DeleteDeck(ctx context.Context, userID, id string) error
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

// List returns the decks of the user, newest first.
func (svc *Service) List(ctx context.Context, userID string) ([]Deck, error) {
	decks, err := svc.repo.ListDecks(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing decks")
	}
	return decks, nil
}

func (svc *Service) Get(ctx context.Context, userID, id string) (Deck, error) {
	return svc.repo.GetDeck(ctx, userID, id)
}

func (svc *Service) Create(ctx context.Context, userID string, nd NewDeck) (Deck, error) {
	cards := CleanCards(nd.Cards)
	if len(cards) == 0 {
		return Deck{}, core.NewValidationError(ErrNoCards, core.FieldError{Field: "cards", Error: ErrNoCards.Error()})
	}

	d, err := svc.repo.CreateDeck(ctx, Deck{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       nd.Title,
		Description: nd.Description,
		Cards:       cards,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Deck{}, errors.Wrap(err, "creating deck")
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(Table, core.ChangeInsert, d.ID, d.UserID, false /* public */, d))
	return d, nil
}

func (svc *Service) Delete(ctx context.Context, d Deck) error {
	if err := svc.repo.DeleteDeck(ctx, d.UserID, d.ID); err != nil {
		return errors.Wrap(err, "deleting deck")
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(Table, core.ChangeDelete, d.ID, d.UserID, false /* public */, nil))
	return nil
}
