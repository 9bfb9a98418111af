package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gosimple/slug"
)

const (
	defaultStageTitle  = "Newbie"
	welcomeContent     = "Welcome to your spiritual journey!"
	welcomeDescription = "This is your first step"
)

// ListBoards returns the boards owned by userID with their stage and item
// counts, newest first.
func (s *Store) ListBoards(ctx context.Context, userID string) ([]BoardSummary, error) {
	rows, err := s.db.QueryContext(ctx, `select b.id, b.user_id, b.title, b.created_at,
			count(distinct st.id) as stage_count, count(distinct i.id) as item_count
		from boards b
		left join stages st on st.board_id = b.id
		left join items i on i.stage_id = st.id
		where b.user_id=$1
		group by b.id
		order by b.created_at desc, b.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BoardSummary{}
	for rows.Next() {
		var b BoardSummary
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.CreatedAt, &b.StageCount, &b.ItemCount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBoard inserts the board together with its default stage and welcome
// item. The board id is the slug of the title, suffixed with the unix time
// when the slug is taken.
func (s *Store) CreateBoard(ctx context.Context, userID, title string) (Board, error) {
	base := slug.Make(title)
	if base == "" {
		base = "board"
	}
	subtasks, err := encodeSubtasks(nil)
	if err != nil {
		return Board{}, err
	}
	activities, err := encodeActivities(nil)
	if err != nil {
		return Board{}, err
	}

	var b Board
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		id := base
		var taken bool
		if err := tx.QueryRowContext(ctx, `select exists(select 1 from boards where id=$1)`, id).Scan(&taken); err != nil {
			return err
		}
		if taken {
			id = fmt.Sprintf("%s-%d", base, time.Now().Unix())
		}
		err := tx.QueryRowContext(ctx, `insert into boards(id, user_id, title) values($1,$2,$3)
			returning id, user_id, title, created_at`, id, userID, title).
			Scan(&b.ID, &b.UserID, &b.Title, &b.CreatedAt)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return err
		}
		stageID := "newbie_" + b.ID
		if _, err := tx.ExecContext(ctx, `insert into stages(id, board_id, title, position) values($1,$2,$3,1)`,
			stageID, b.ID, defaultStageTitle); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `insert into items(id, stage_id, content, description, status, progress, subtasks, activities)
			values($1,$2,$3,$4,$5,0,$6,$7)`,
			"item_"+newID(), stageID, welcomeContent, welcomeDescription, defaultItemStatus, subtasks, activities)
		return err
	})
	if err != nil {
		return Board{}, err
	}
	return b, nil
}

func (s *Store) BoardOwner(ctx context.Context, boardID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `select user_id from boards where id=$1`, boardID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return owner, err
}

// StagesByBoard returns the board's stages ordered for display.
func (s *Store) StagesByBoard(ctx context.Context, boardID string) ([]Stage, error) {
	return queryStages(ctx, s.db, `select id, board_id, title, position, created_at from stages
		where board_id=$1 order by position, created_at`, boardID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryStages(ctx context.Context, q queryer, query string, args ...any) ([]Stage, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Stage{}
	for rows.Next() {
		var st Stage
		if err := rows.Scan(&st.ID, &st.BoardID, &st.Title, &st.Position, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ItemRowsByBoard returns every item of the board's stages, oldest first,
// with the JSON columns left encoded.
func (s *Store) ItemRowsByBoard(ctx context.Context, boardID string) ([]ItemRow, error) {
	rows, err := s.db.QueryContext(ctx, `select i.id, i.stage_id, i.content, i.description, i.status, i.progress,
			coalesce(i.subtasks,''), coalesce(i.activities,''), i.created_at, i.updated_at
		from items i join stages st on st.id = i.stage_id
		where st.board_id=$1
		order by i.created_at, i.id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ItemRow{}
	for rows.Next() {
		var r ItemRow
		if err := rows.Scan(&r.ID, &r.StageID, &r.Content, &r.Description, &r.Status, &r.Progress,
			&r.Subtasks, &r.Activities, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateStage appends a stage after the board's current last position.
func (s *Store) CreateStage(ctx context.Context, boardID, id, title string) (Stage, error) {
	var st Stage
	err := s.db.QueryRowContext(ctx, `insert into stages(id, board_id, title, position)
		select $1, $2, $3, coalesce(max(position),0)+1 from stages where board_id=$2
		returning id, board_id, title, position, created_at`, id, boardID, title).
		Scan(&st.ID, &st.BoardID, &st.Title, &st.Position, &st.CreatedAt)
	if isUniqueViolation(err) {
		return Stage{}, ErrConflict
	}
	if err != nil {
		return Stage{}, err
	}
	return st, nil
}

// DeleteStage removes the stage and its items, then shifts every later stage
// of the board up by one position.
func (s *Store) DeleteStage(ctx context.Context, boardID, stageID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var deleted int
		err := tx.QueryRowContext(ctx, `select position from stages where id=$1 and board_id=$2 for update`, stageID, boardID).Scan(&deleted)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rest, err := queryStages(ctx, tx, `select id, board_id, title, position, created_at from stages
			where board_id=$1 and id<>$2 order by position, created_at for update`, boardID, stageID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from items where stage_id=$1`, stageID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from stages where id=$1`, stageID); err != nil {
			return err
		}
		before := make([]int, len(rest))
		for i, st := range rest {
			before[i] = st.Position
		}
		reindexAfterStageDeletion(rest, deleted)
		for i, st := range rest {
			if st.Position == before[i] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `update stages set position=$1 where id=$2`, st.Position, st.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ItemOwner resolves the owner of the board an item belongs to, walking
// item -> stage -> board.
func (s *Store) ItemOwner(ctx context.Context, boardID, itemID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `select b.user_id
		from boards b
		join stages st on st.board_id = b.id
		join items i on i.stage_id = st.id
		where b.id=$1 and i.id=$2`, boardID, itemID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return owner, err
}

func stageInBoard(ctx context.Context, tx *sql.Tx, boardID, stageID string) error {
	var ok bool
	if err := tx.QueryRowContext(ctx, `select exists(select 1 from stages where id=$1 and board_id=$2)`, stageID, boardID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stage %s: %w", stageID, ErrNotFound)
	}
	return nil
}

func (s *Store) CreateItem(ctx context.Context, boardID string, it Item) (Item, error) {
	subtasks, err := encodeSubtasks(it.Subtasks)
	if err != nil {
		return Item{}, err
	}
	activities, err := encodeActivities(it.Activities)
	if err != nil {
		return Item{}, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := stageInBoard(ctx, tx, boardID, it.StageID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, `insert into items(id, stage_id, content, description, status, progress, subtasks, activities)
			values($1,$2,$3,$4,$5,$6,$7,$8) returning created_at, updated_at`,
			it.ID, it.StageID, it.Content, it.Description, it.Status, it.Progress, subtasks, activities).
			Scan(&it.CreatedAt, &it.UpdatedAt)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return normalizeItem(it), nil
}

// UpdateItem replaces every editable field of the item. The target stage may
// change but must belong to the same board.
func (s *Store) UpdateItem(ctx context.Context, boardID, itemID string, it Item) (Item, error) {
	subtasks, err := encodeSubtasks(it.Subtasks)
	if err != nil {
		return Item{}, err
	}
	activities, err := encodeActivities(it.Activities)
	if err != nil {
		return Item{}, err
	}
	it.ID = itemID
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := stageInBoard(ctx, tx, boardID, it.StageID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, `update items
			set content=$1, stage_id=$2, description=$3, status=$4, progress=$5, subtasks=$6, activities=$7, updated_at=now()
			where id=$8 and stage_id in (select id from stages where board_id=$9)
			returning created_at, updated_at`,
			it.Content, it.StageID, it.Description, it.Status, it.Progress, subtasks, activities, itemID, boardID).
			Scan(&it.CreatedAt, &it.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return normalizeItem(it), nil
}

func (s *Store) DeleteItem(ctx context.Context, boardID, itemID string) error {
	res, err := s.db.ExecContext(ctx, `delete from items i using stages st
		where i.stage_id = st.id and st.board_id=$1 and i.id=$2`, boardID, itemID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// normalizeItem gives nil lists their empty JSON form.
func normalizeItem(it Item) Item {
	if it.Subtasks == nil {
		it.Subtasks = []Subtask{}
	}
	if it.Activities == nil {
		it.Activities = []Activity{}
	}
	return it
}
