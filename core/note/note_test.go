package note_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/note"
	inmemdb "github.com/etudier/etudier/storage/database/inmem"
	testutil "github.com/etudier/etudier/tests"
)

func TestService(t *testing.T) {
	pub := &testutil.ChangeRecorder{}
	svc := note.NewService(inmemdb.NewNoteRepository(inmemdb.Open()), pub, testutil.NopLogger{})
	ctx := context.Background()

	first, err := svc.Create(ctx, "u1", note.NewNote{Title: "Photosynthesis", HTML: "<p>light <b>energy</b></p>"})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := svc.Create(ctx, "u1", note.NewNote{Title: "Mitosis"})
	require.NoError(t, err)

	notes, err := svc.List(ctx, "u1", note.ListFilter{})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, second.ID, notes[0].ID, "most recently updated first")

	time.Sleep(time.Millisecond)
	html := "<p>chlorophyll</p>"
	first, err = svc.Update(ctx, first, note.UpdateNote{HTML: &html})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", first.Title)
	assert.Equal(t, html, first.HTML)

	notes, err = svc.List(ctx, "u1", note.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, notes[0].ID)

	notes, err = svc.List(ctx, "u1", note.ListFilter{Search: "CHLORO"})
	require.NoError(t, err)
	require.Len(t, notes, 1)

	notes, err = svc.List(ctx, "u2", note.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, svc.Delete(ctx, first))
	_, err = svc.Get(ctx, "u1", first.ID)
	assert.True(t, core.IsNotFound(err))

	c := pub.Last()
	assert.Equal(t, note.Table, c.Table)
	assert.Equal(t, core.ChangeDelete, c.Type)
	assert.False(t, c.VisibleTo("u2"))
	assert.True(t, c.VisibleTo("u1"))
}
