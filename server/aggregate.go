package main

import (
	"encoding/json"
	"fmt"
	"time"
)

type StageView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	Items     []Item    `json:"items"`
}

// BoardView is the nested tree returned for a single board, keyed by stage id.
type BoardView struct {
	Stages map[string]StageView `json:"stages"`
}

// assembleBoard nests rows under their stages. stages must already be ordered
// by position then creation time and rows by creation time; the relative
// order of rows is kept within each stage. Rows pointing at a stage not in
// stages are dropped.
func assembleBoard(stages []Stage, rows []ItemRow) (BoardView, error) {
	byStage := make(map[string][]Item, len(stages))
	for _, s := range stages {
		byStage[s.ID] = []Item{}
	}
	for _, row := range rows {
		items, ok := byStage[row.StageID]
		if !ok {
			continue
		}
		it, err := decodeItem(row)
		if err != nil {
			return BoardView{}, err
		}
		byStage[row.StageID] = append(items, it)
	}

	view := BoardView{Stages: make(map[string]StageView, len(stages))}
	for _, s := range stages {
		view.Stages[s.ID] = StageView{
			ID:        s.ID,
			Title:     s.Title,
			Position:  s.Position,
			CreatedAt: s.CreatedAt,
			Items:     byStage[s.ID],
		}
	}
	return view, nil
}

func decodeItem(row ItemRow) (Item, error) {
	it := Item{
		ID:          row.ID,
		StageID:     row.StageID,
		Content:     row.Content,
		Description: row.Description,
		Status:      row.Status,
		Progress:    row.Progress,
		Subtasks:    []Subtask{},
		Activities:  []Activity{},
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if err := decodeColumn(row.Subtasks, &it.Subtasks); err != nil {
		return Item{}, fmt.Errorf("%w: item %s subtasks: %w", ErrDataIntegrity, row.ID, err)
	}
	if err := decodeColumn(row.Activities, &it.Activities); err != nil {
		return Item{}, fmt.Errorf("%w: item %s activities: %w", ErrDataIntegrity, row.ID, err)
	}
	return it, nil
}

// decodeColumn leaves dst untouched for an empty column or a JSON null.
func decodeColumn[T any](raw string, dst *[]T) error {
	if raw == "" || raw == "null" {
		return nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return err
	}
	if out != nil {
		*dst = out
	}
	return nil
}

func encodeSubtasks(s []Subtask) (string, error) {
	if s == nil {
		s = []Subtask{}
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func encodeActivities(a []Activity) (string, error) {
	if a == nil {
		a = []Activity{}
	}
	b, err := json.Marshal(a)
	return string(b), err
}

// reindexAfterStageDeletion closes the gap left by a stage deleted at
// deletedPosition: every later stage moves up by one.
func reindexAfterStageDeletion(stages []Stage, deletedPosition int) {
	for i := range stages {
		if stages[i].Position > deletedPosition {
			stages[i].Position--
		}
	}
}
