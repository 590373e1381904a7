// Package conversation steps a respondent through a form one question at a
// time, with each question rephrased by the text generator in light of the
// answers given so far.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chatforms-backend/internal/models"
)

var (
	ErrFinished       = errors.New("conversation is finished")
	ErrNotAQuestion   = errors.New("current step is not a question")
	ErrAwaitingAnswer = errors.New("current question needs an answer or a skip")
	ErrRequired       = errors.New("this question is required")
	ErrInvalidOption  = errors.New("option does not belong to the question")
)

type StepKind string

const (
	StepIntro    StepKind = "intro"
	StepQuestion StepKind = "question"
	StepOutro    StepKind = "outro"
	StepDone     StepKind = "done"
)

const skippedMarker = "[Skipped]"

// Prompter opens the generation streams for each kind of step.
type Prompter interface {
	IntroMessage(ctx context.Context, form *models.Form) (<-chan string, <-chan error)
	RephraseQuestion(ctx context.Context, question, history string) (<-chan string, <-chan error)
	OutroMessage(ctx context.Context, form *models.Form, history string) (<-chan string, <-chan error)
}

type Step struct {
	Kind     StepKind         `json:"kind"`
	Index    int              `json:"index"`
	Question *models.Question `json:"question,omitempty"`
}

type AnswerInput struct {
	Text     string `json:"answer_text"`
	OptionID string `json:"answer_option_id"`
	Skip     bool   `json:"skip"`
}

// Exchange is one question as it was shown and the answer given to it.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type State struct {
	Step     Step       `json:"step"`
	Display  string     `json:"display"`
	Answered int        `json:"answered"`
	Total    int        `json:"total"`
	History  []Exchange `json:"history"`
}

// Flow is safe for concurrent use.
type Flow struct {
	mu        sync.Mutex
	form      *models.Form
	kind      StepKind
	index     int
	answers   []models.Answer
	history   []Exchange
	rephrased map[int]string
	display   string
	gen       uint64
	cancel    context.CancelFunc
}

// NewFlow starts at the intro step. Questions are taken in the order given.
func NewFlow(form *models.Form) *Flow {
	return &Flow{
		form:      form,
		kind:      StepIntro,
		rephrased: make(map[int]string),
	}
}

func (f *Flow) Form() *models.Form { return f.form }

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stepLocked()
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Step:     f.stepLocked(),
		Display:  f.display,
		Answered: len(f.answers),
		Total:    len(f.form.Questions),
		History:  append([]Exchange(nil), f.history...),
	}
}

func (f *Flow) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind == StepDone
}

// Answers returns the answers recorded so far. ResponseID is left empty.
func (f *Flow) Answers() []models.Answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Answer(nil), f.answers...)
}

func (f *Flow) History() []Exchange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Exchange(nil), f.history...)
}

// Prompt opens the generation stream for the current step. Any stream that
// is still running for this flow is cancelled first, and a cancelled stream
// never touches the display buffer again.
func (f *Flow) Prompt(ctx context.Context, p Prompter) (<-chan string, <-chan error) {
	f.mu.Lock()
	if f.kind == StepDone {
		f.mu.Unlock()
		return failedStream(ErrFinished)
	}
	f.stopLocked()

	streamCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	gen := f.gen
	f.display = ""
	kind, index := f.kind, f.index

	var deltas <-chan string
	var errs <-chan error
	switch kind {
	case StepIntro:
		deltas, errs = p.IntroMessage(streamCtx, f.form)
	case StepQuestion:
		deltas, errs = p.RephraseQuestion(streamCtx, f.form.Questions[index].QuestionText, f.contextLocked())
	case StepOutro:
		deltas, errs = p.OutroMessage(streamCtx, f.form, f.contextLocked())
	}
	f.mu.Unlock()

	out := make(chan string)
	outErrs := make(chan error, 1)
	go func() {
		defer close(outErrs)
		defer close(out)
		defer cancel()

		for d := range deltas {
			if !f.appendDisplay(gen, d) {
				continue
			}
			select {
			case out <- d:
			case <-streamCtx.Done():
			}
		}
		err := <-errs
		if err == nil && streamCtx.Err() != nil {
			err = streamCtx.Err()
		}
		if err != nil {
			outErrs <- err
			return
		}
		if kind == StepQuestion {
			f.finishRephrase(gen, index)
		}
	}()

	return out, outErrs
}

// Advance leaves the intro or outro step. Question steps are left through
// Answer.
func (f *Flow) Advance() (Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.kind {
	case StepIntro:
		f.enterQuestionLocked(0)
	case StepOutro:
		f.stopLocked()
		f.kind = StepDone
		f.display = ""
	case StepQuestion:
		return f.stepLocked(), ErrAwaitingAnswer
	case StepDone:
		return f.stepLocked(), ErrFinished
	}
	return f.stepLocked(), nil
}

// Answer records the answer to the current question and moves on. An empty
// answer to an optional question moves on without recording anything; a skip
// records an empty answer.
func (f *Flow) Answer(in AnswerInput) (Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.kind == StepDone {
		return f.stepLocked(), ErrFinished
	}
	if f.kind != StepQuestion {
		return f.stepLocked(), ErrNotAQuestion
	}

	q := f.form.Questions[f.index]
	text := strings.TrimSpace(in.Text)
	empty := text == "" && in.OptionID == ""
	if q.Required && (empty || in.Skip) {
		return f.stepLocked(), ErrRequired
	}

	shown := f.rephrased[f.index]
	if shown == "" {
		shown = q.QuestionText
	}

	switch {
	case in.Skip:
		blank := ""
		f.answers = append(f.answers, models.Answer{QuestionID: q.ID, AnswerText: &blank})
		f.history = append(f.history, Exchange{Question: shown, Answer: skippedMarker})
	case !empty:
		ans := models.Answer{QuestionID: q.ID}
		display := text
		if in.OptionID != "" {
			opt, ok := findOption(q, in.OptionID)
			if !ok {
				return f.stepLocked(), fmt.Errorf("%w: %s", ErrInvalidOption, in.OptionID)
			}
			optionID := opt.ID
			ans.AnswerOptionID = &optionID
			display = opt.Text
		}
		ans.AnswerText = &display
		f.answers = append(f.answers, ans)
		f.history = append(f.history, Exchange{Question: shown, Answer: display})
	}

	f.enterQuestionLocked(f.index + 1)
	return f.stepLocked(), nil
}

// Close cancels any running stream.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
}

// Context renders the prior exchanges the way the rephrasing prompt expects.
func (f *Flow) Context() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contextLocked()
}

func (f *Flow) contextLocked() string {
	lines := make([]string, 0, len(f.history))
	for _, e := range f.history {
		lines = append(lines, fmt.Sprintf("Question: %q Answer: %q", e.Question, e.Answer))
	}
	return strings.Join(lines, "\n")
}

func (f *Flow) enterQuestionLocked(i int) {
	f.stopLocked()
	f.display = ""
	if i < len(f.form.Questions) {
		f.kind = StepQuestion
		f.index = i
		return
	}
	f.kind = StepOutro
	f.index = len(f.form.Questions)
}

// stopLocked cancels the running stream and invalidates its generation.
func (f *Flow) stopLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.gen++
}

func (f *Flow) stepLocked() Step {
	s := Step{Kind: f.kind, Index: f.index}
	if f.kind == StepQuestion {
		q := f.form.Questions[f.index]
		s.Question = &q
	}
	return s
}

func (f *Flow) appendDisplay(gen uint64, delta string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return false
	}
	f.display += delta
	return true
}

func (f *Flow) finishRephrase(gen uint64, index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen == f.gen {
		f.rephrased[index] = f.display
	}
}

func findOption(q models.Question, id string) (models.Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return models.Option{}, false
}

func failedStream(err error) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	close(out)
	errs <- err
	close(errs)
	return out, errs
}
