package builder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftStoreOwnership(t *testing.T) {
	s := NewDraftStore(time.Hour)
	d := New("alice")
	s.Put(d)

	_, err := s.Get(d.ID, "bob")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	got, err := s.Get(d.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	assert.ErrorIs(t, s.Delete(d.ID, "bob"), ErrDraftNotFound)
	require.NoError(t, s.Delete(d.ID, "alice"))
	assert.Zero(t, s.Len())
}

func TestDraftStoreUpdateIsAtomic(t *testing.T) {
	s := NewDraftStore(time.Hour)
	d := New("alice")
	s.Put(d)

	_, err := s.Update(d.ID, "alice", func(d *Draft) error {
		d.AddQuestion("half done")
		return errors.New("boom")
	})
	require.Error(t, err)

	got, _ := s.Get(d.ID, "alice")
	assert.Empty(t, got.Questions)

	updated, err := s.Update(d.ID, "alice", func(d *Draft) error {
		d.AddQuestion("kept")
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.Questions, 1)

	// The returned copy is detached from the stored draft.
	updated.Questions[0].Text = "mutated"
	got, _ = s.Get(d.ID, "alice")
	assert.Equal(t, "kept", got.Questions[0].Text)
}

func TestDraftStoreExpires(t *testing.T) {
	s := NewDraftStore(time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return now }

	d := New("alice")
	s.Put(d)

	now = now.Add(30 * time.Second)
	_, err := s.Get(d.ID, "alice")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(d.ID, "alice")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.Zero(t, s.Len())
}

func TestDraftStoreSaveDoesNotBlockEdits(t *testing.T) {
	s := NewDraftStore(time.Hour)
	d := New("alice")
	d.SetName("Survey")
	s.Put(d)
	other := New("alice")
	s.Put(other)

	inSave := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	var saved *Draft
	go func() {
		defer close(done)
		var err error
		saved, err = s.Save(d.ID, "alice", func(w *Draft) error {
			close(inSave)
			<-release
			w.FormID = "form-1"
			return nil
		})
		assert.NoError(t, err)
	}()
	<-inSave

	_, err := s.Update(other.ID, "alice", func(d *Draft) error {
		d.AddQuestion("elsewhere")
		return nil
	})
	require.NoError(t, err)
	_, err = s.Update(d.ID, "alice", func(d *Draft) error {
		d.AddQuestion("added while saving")
		return nil
	})
	require.NoError(t, err)

	close(release)
	<-done

	require.NotNil(t, saved)
	assert.Equal(t, "form-1", saved.FormID)
	got, err := s.Get(d.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "form-1", got.FormID)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "added while saving", got.Questions[0].Text)
}

func TestDraftStoreSaveFailureKeepsDraft(t *testing.T) {
	s := NewDraftStore(time.Hour)
	d := New("alice")
	s.Put(d)

	_, err := s.Save(d.ID, "alice", func(w *Draft) error {
		w.FormID = "never"
		return errors.New("db down")
	})
	require.Error(t, err)

	got, _ := s.Get(d.ID, "alice")
	assert.Empty(t, got.FormID)

	_, err = s.Save(d.ID, "bob", func(*Draft) error { return nil })
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
