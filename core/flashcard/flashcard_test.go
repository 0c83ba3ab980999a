package flashcard_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/flashcard"
	inmemdb "github.com/etudier/etudier/storage/database/inmem"
	testutil "github.com/etudier/etudier/tests"
)

func TestNewDeck_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	nd := flashcard.NewDeck{Title: " Capitals ", Cards: []flashcard.Card{{Question: " France? ", Answer: " Paris "}}}
	require.NoError(t, nd.Validate(validate))
	assert.Equal(t, "Capitals", nd.Title)
	assert.Equal(t, flashcard.Card{Question: "France?", Answer: "Paris"}, nd.Cards[0])

	nd = flashcard.NewDeck{Title: "Capitals", Cards: []flashcard.Card{{Question: "France?", Answer: "  "}}}
	assert.Error(t, nd.Validate(validate))

	nd = flashcard.NewDeck{Title: "Capitals"}
	assert.Error(t, nd.Validate(validate))
}

func TestService(t *testing.T) {
	pub := &testutil.ChangeRecorder{}
	svc := flashcard.NewService(inmemdb.NewFlashcardRepository(inmemdb.Open()), pub, testutil.NopLogger{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", flashcard.NewDeck{Title: "empty", Cards: []flashcard.Card{{Question: "q"}}})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, flashcard.ErrNoCards, vErr.Err)

	d, err := svc.Create(ctx, "u1", flashcard.NewDeck{Title: "Capitals", Cards: []flashcard.Card{
		{Question: "France?", Answer: "Paris"},
		{Question: "", Answer: "dropped"},
		{Question: "DRC?", Answer: "Kinshasa"},
	}})
	require.NoError(t, err)
	assert.Len(t, d.Cards, 2)

	decks, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, decks, 1)
	assert.Equal(t, d.Cards, decks[0].Cards)

	_, err = svc.Get(ctx, "u2", d.ID)
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, svc.Delete(ctx, d))
	decks, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, decks)
	assert.Len(t, pub.Changes(), 2)
}
