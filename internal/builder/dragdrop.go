package builder

import (
	"fmt"
	"strings"
)

const (
	DragTypeQuestion = "question"
	DragTypeOption   = "option"

	optionsDroppableSuffix = "-options"
)

type DragLocation struct {
	DroppableID string `json:"droppable_id"`
	Index       int    `json:"index"`
}

// DropResult describes a finished drag. Destination is nil when the item was
// dropped outside any list.
type DropResult struct {
	Type        string        `json:"type"`
	Source      DragLocation  `json:"source"`
	Destination *DragLocation `json:"destination"`
}

// OnDragEnd applies a finished drag to the draft. Option lists use the
// droppable id "<questionID>-options".
func (d *Draft) OnDragEnd(r DropResult) error {
	if r.Destination == nil {
		return nil
	}
	if r.Destination.DroppableID == r.Source.DroppableID && r.Destination.Index == r.Source.Index {
		return nil
	}

	switch r.Type {
	case DragTypeQuestion:
		return d.ReorderQuestions(r.Source.Index, r.Destination.Index)
	case DragTypeOption:
		questionID := strings.TrimSuffix(r.Source.DroppableID, optionsDroppableSuffix)
		return d.ReorderOptions(questionID, r.Source.Index, r.Destination.Index)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDragType, r.Type)
	}
}

// OptionsDroppableID is the droppable id of a question's option list.
func OptionsDroppableID(questionID string) string {
	return questionID + optionsDroppableSuffix
}
