package builder

import (
	"context"
	"errors"
	"testing"

	"chatforms-backend/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftWithQuestions(t *testing.T, texts ...string) (*Draft, []string) {
	t.Helper()
	d := New("user_1")
	d.SetName("Survey")
	ids := make([]string, 0, len(texts))
	for _, text := range texts {
		ids = append(ids, d.AddQuestion(text))
	}
	return d, ids
}

func questionIDs(d *Draft) []string {
	out := make([]string, 0, len(d.Questions))
	for _, q := range d.Questions {
		out = append(out, q.ID)
	}
	return out
}

func assertContiguous(t *testing.T, d *Draft) {
	t.Helper()
	for i, q := range d.Questions {
		assert.Equal(t, i, q.Order, "question %s", q.ID)
		for j, o := range q.Options {
			assert.Equal(t, j, o.Order, "option %s of %s", o.ID, q.ID)
		}
	}
}

func TestReorderQuestions(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []int
	}{
		{"first to last", 0, 3, []int{1, 2, 3, 0}},
		{"last to first", 3, 0, []int{3, 0, 1, 2}},
		{"middle down", 1, 2, []int{0, 2, 1, 3}},
		{"middle up", 2, 1, []int{0, 2, 1, 3}},
		{"same index", 2, 2, []int{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ids := draftWithQuestions(t, "a", "b", "c", "d")

			require.NoError(t, d.ReorderQuestions(tt.from, tt.to))

			want := make([]string, 0, len(tt.want))
			for _, i := range tt.want {
				want = append(want, ids[i])
			}
			if diff := cmp.Diff(want, questionIDs(d)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
			assertContiguous(t, d)
		})
	}
}

func TestReorderQuestionsOutOfRange(t *testing.T) {
	d, ids := draftWithQuestions(t, "a", "b")

	err := d.ReorderQuestions(0, 2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	err = d.ReorderQuestions(-1, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.Equal(t, ids, questionIDs(d))
}

func TestDeleteQuestion(t *testing.T) {
	d, ids := draftWithQuestions(t, "a", "b", "c")

	require.NoError(t, d.DeleteQuestion(ids[1]))

	assert.Equal(t, []string{ids[0], ids[2]}, questionIDs(d))
	assertContiguous(t, d)

	err := d.DeleteQuestion(ids[1])
	assert.ErrorIs(t, err, ErrQuestionNotFound)
	assert.Len(t, d.Questions, 2)
}

func TestUpdateQuestionTypeClearsOptions(t *testing.T) {
	d, ids := draftWithQuestions(t, "favourite colour?")
	qid := ids[0]

	require.NoError(t, d.UpdateQuestionType(qid, models.QuestionTypeRadio))
	_, err := d.AddOption(qid, "red")
	require.NoError(t, err)
	_, err = d.AddOption(qid, "blue")
	require.NoError(t, err)
	require.Len(t, d.Questions[0].Options, 2)

	require.NoError(t, d.UpdateQuestionType(qid, models.QuestionTypeText))

	assert.Equal(t, models.QuestionTypeText, d.Questions[0].Type)
	assert.Empty(t, d.Questions[0].Options)

	err = d.UpdateQuestionType(qid, "slider")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestAddOptionRequiresChoiceType(t *testing.T) {
	d, ids := draftWithQuestions(t, "name?")

	_, err := d.AddOption(ids[0], "x")
	assert.ErrorIs(t, err, ErrNotChoice)
}

func TestOptionEditing(t *testing.T) {
	d, ids := draftWithQuestions(t, "pick one")
	qid := ids[0]
	require.NoError(t, d.UpdateQuestionType(qid, models.QuestionTypeSelect))

	a, _ := d.AddOption(qid, "a")
	b, _ := d.AddOption(qid, "b")
	c, _ := d.AddOption(qid, "c")

	require.NoError(t, d.UpdateOptionText(qid, b, "B"))
	require.NoError(t, d.ReorderOptions(qid, 2, 0))
	assert.Equal(t, []string{c, a, b}, optionIDs(d.Questions[0]))
	assertContiguous(t, d)

	require.NoError(t, d.RemoveOption(qid, a))
	assert.Equal(t, []string{c, b}, optionIDs(d.Questions[0]))
	assert.Equal(t, "B", d.Questions[0].Options[1].Text)
	assertContiguous(t, d)

	assert.ErrorIs(t, d.RemoveOption(qid, a), ErrOptionNotFound)
	assert.ErrorIs(t, d.UpdateOptionText("nope", a, "x"), ErrQuestionNotFound)
}

func optionIDs(q Question) []string {
	out := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		out = append(out, o.ID)
	}
	return out
}

func TestToggleRequiredAndRename(t *testing.T) {
	d, ids := draftWithQuestions(t, "a")

	require.NoError(t, d.ToggleRequired(ids[0]))
	assert.True(t, d.Questions[0].Required)
	require.NoError(t, d.ToggleRequired(ids[0]))
	assert.False(t, d.Questions[0].Required)

	require.NoError(t, d.UpdateQuestionText(ids[0], "renamed"))
	assert.Equal(t, "renamed", d.Questions[0].Text)
}

func TestOnDragEnd(t *testing.T) {
	t.Run("no destination is a no-op", func(t *testing.T) {
		d, ids := draftWithQuestions(t, "a", "b")
		err := d.OnDragEnd(DropResult{Type: DragTypeQuestion, Source: DragLocation{"questions", 0}})
		require.NoError(t, err)
		assert.Equal(t, ids, questionIDs(d))
	})

	t.Run("same place is a no-op", func(t *testing.T) {
		d, ids := draftWithQuestions(t, "a", "b")
		err := d.OnDragEnd(DropResult{
			Type:        DragTypeQuestion,
			Source:      DragLocation{"questions", 1},
			Destination: &DragLocation{"questions", 1},
		})
		require.NoError(t, err)
		assert.Equal(t, ids, questionIDs(d))
	})

	t.Run("question drag reorders questions", func(t *testing.T) {
		d, ids := draftWithQuestions(t, "a", "b", "c")
		err := d.OnDragEnd(DropResult{
			Type:        DragTypeQuestion,
			Source:      DragLocation{"questions", 0},
			Destination: &DragLocation{"questions", 2},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{ids[1], ids[2], ids[0]}, questionIDs(d))
		assertContiguous(t, d)
	})

	t.Run("option drag reorders the owning question", func(t *testing.T) {
		d, ids := draftWithQuestions(t, "a", "b")
		qid := ids[1]
		require.NoError(t, d.UpdateQuestionType(qid, models.QuestionTypeCheckbox))
		x, _ := d.AddOption(qid, "x")
		y, _ := d.AddOption(qid, "y")

		err := d.OnDragEnd(DropResult{
			Type:        DragTypeOption,
			Source:      DragLocation{OptionsDroppableID(qid), 0},
			Destination: &DragLocation{OptionsDroppableID(qid), 1},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{y, x}, optionIDs(d.Questions[1]))
		assert.Equal(t, ids, questionIDs(d))
		assertContiguous(t, d)
	})

	t.Run("unknown type", func(t *testing.T) {
		d, _ := draftWithQuestions(t, "a", "b")
		err := d.OnDragEnd(DropResult{
			Type:        "column",
			Source:      DragLocation{"x", 0},
			Destination: &DragLocation{"x", 1},
		})
		assert.ErrorIs(t, err, ErrUnknownDragType)
	})
}

type fakeSaver struct {
	created, updated int
	err              error
	last             *models.Form
}

func (f *fakeSaver) CreateForm(_ context.Context, _ string, form *models.Form) (*models.Form, error) {
	f.created++
	f.last = form
	if f.err != nil {
		return nil, f.err
	}
	saved := *form
	saved.ID = "form_1"
	return &saved, nil
}

func (f *fakeSaver) UpdateExistingForm(_ context.Context, _ string, form *models.Form) (*models.Form, error) {
	f.updated++
	f.last = form
	if f.err != nil {
		return nil, f.err
	}
	return form, nil
}

func TestSaveRejectsEmptyTitleBeforePersisting(t *testing.T) {
	d, _ := draftWithQuestions(t, "a")
	d.SetName("   ")
	saver := &fakeSaver{}

	_, err := d.Save(context.Background(), saver)

	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Zero(t, saver.created)
	assert.Zero(t, saver.updated)
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	d, _ := draftWithQuestions(t, "a", "b")
	saver := &fakeSaver{}

	form, err := d.Save(context.Background(), saver)
	require.NoError(t, err)
	assert.Equal(t, "form_1", form.ID)
	assert.Equal(t, "form_1", d.FormID)
	assert.Equal(t, 1, saver.created)

	require.NoError(t, d.ReorderQuestions(1, 0))
	_, err = d.Save(context.Background(), saver)
	require.NoError(t, err)
	assert.Equal(t, 1, saver.updated)
	assert.Equal(t, "form_1", saver.last.ID)
	assert.Equal(t, "b", saver.last.Questions[0].QuestionText)
	assert.Equal(t, 0, saver.last.Questions[0].OrderNum)
	assert.Equal(t, 1, saver.last.Questions[1].OrderNum)
}

func TestSaveFailureKeepsDraftUnsaved(t *testing.T) {
	d, _ := draftWithQuestions(t, "a")
	saver := &fakeSaver{err: errors.New("db down")}

	_, err := d.Save(context.Background(), saver)

	assert.Error(t, err)
	assert.Empty(t, d.FormID)
}

func TestFromGeneratedNormalizes(t *testing.T) {
	form := &models.Form{
		Title: "Feedback",
		Questions: []models.Question{
			{QuestionText: "Rate us", QuestionType: models.QuestionTypeRadio, OrderNum: 7,
				Options: []models.Option{{Text: "good", Order: 3}, {Text: "bad", Order: 9}}},
			{QuestionText: "Comments", QuestionType: models.QuestionTypeText,
				Options: []models.Option{{Text: "stray"}}},
			{QuestionText: "Mystery", QuestionType: "slider"},
		},
	}

	d := FromGenerated("user_1", form)

	assert.Empty(t, d.FormID)
	assert.Equal(t, models.DefaultFont, d.Font)
	require.Len(t, d.Questions, 3)
	assertContiguous(t, d)
	assert.Len(t, d.Questions[0].Options, 2)
	for _, o := range d.Questions[0].Options {
		assert.NotEmpty(t, o.ID)
	}
	assert.Empty(t, d.Questions[1].Options)
	assert.Equal(t, models.QuestionTypeText, d.Questions[2].Type)
}

func TestCloneIsDeep(t *testing.T) {
	d, ids := draftWithQuestions(t, "a")
	require.NoError(t, d.UpdateQuestionType(ids[0], models.QuestionTypeRadio))
	_, _ = d.AddOption(ids[0], "x")

	c := d.Clone()
	c.Questions[0].Options[0].Text = "changed"
	c.Questions[0].Text = "changed"

	assert.Equal(t, "x", d.Questions[0].Options[0].Text)
	assert.Equal(t, "a", d.Questions[0].Text)
}
