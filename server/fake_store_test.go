package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gosimple/slug"
)

// fakeStore is an in-memory dataStore for handler tests.
type fakeStore struct {
	mu      sync.Mutex
	pingErr error
	clock   time.Time

	users   []User
	hashes  map[string]string
	boards  []Board
	stages  []Stage
	items   []Item
	raw     map[string]ItemRow // overrides the encoded row of an item
	discs   []Discipleship
	failAll error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		hashes: map[string]string{},
		raw:    map[string]ItemRow{},
	}
}

// tick returns a strictly increasing timestamp.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) CreateUser(_ context.Context, u User, hash string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.users {
		if x.ID == u.ID || x.Email == u.Email {
			return User{}, ErrConflict
		}
	}
	if u.Interests == nil {
		u.Interests = []string{}
	}
	u.CreatedAt = f.tick()
	f.users = append(f.users, u)
	f.hashes[u.ID] = hash
	return u, nil
}

func (f *fakeStore) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := f.UserByEmail(ctx, email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	f.mu.Lock()
	hash := f.hashes[u.ID]
	f.mu.Unlock()
	if checkPassword(hash, password) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) GetUser(_ context.Context, id string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) ListUsers(context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	return append([]User{}, f.users...), nil
}

func (f *fakeStore) Disciples(_ context.Context, disciplerID string) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []User{}
	for _, d := range f.discs {
		if d.DisciplerID != disciplerID {
			continue
		}
		for _, u := range f.users {
			if u.ID == d.DiscipleID {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Discipler(ctx context.Context, discipleID string) (User, error) {
	f.mu.Lock()
	var disciplerID string
	for _, d := range f.discs {
		if d.DiscipleID == discipleID {
			disciplerID = d.DisciplerID
		}
	}
	f.mu.Unlock()
	if disciplerID == "" {
		return User{}, ErrNotFound
	}
	return f.GetUser(ctx, disciplerID)
}

func (f *fakeStore) CreateDiscipleship(_ context.Context, disciplerID, discipleID string) (Discipleship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.discs {
		if d.DiscipleID == discipleID {
			return Discipleship{}, ErrConflict
		}
	}
	d := Discipleship{ID: "disc_" + newID(), DisciplerID: disciplerID, DiscipleID: discipleID, StartDate: f.tick()}
	f.discs = append(f.discs, d)
	return d, nil
}

func (f *fakeStore) ListBoards(_ context.Context, userID string) ([]BoardSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []BoardSummary{}
	for i := len(f.boards) - 1; i >= 0; i-- {
		b := f.boards[i]
		if b.UserID != userID {
			continue
		}
		s := BoardSummary{Board: b}
		for _, st := range f.stages {
			if st.BoardID != b.ID {
				continue
			}
			s.StageCount++
			for _, it := range f.items {
				if it.StageID == st.ID {
					s.ItemCount++
				}
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) boardByID(id string) (Board, bool) {
	for _, b := range f.boards {
		if b.ID == id {
			return b, true
		}
	}
	return Board{}, false
}

func (f *fakeStore) CreateBoard(_ context.Context, userID, title string) (Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := slug.Make(title)
	if id == "" {
		id = "board"
	}
	if _, taken := f.boardByID(id); taken {
		id = fmt.Sprintf("%s-%d", id, len(f.boards))
	}
	b := Board{ID: id, UserID: userID, Title: title, CreatedAt: f.tick()}
	f.boards = append(f.boards, b)
	stageID := "newbie_" + id
	f.stages = append(f.stages, Stage{ID: stageID, BoardID: id, Title: defaultStageTitle, Position: 1, CreatedAt: f.tick()})
	now := f.tick()
	f.items = append(f.items, Item{
		ID: "item_" + newID(), StageID: stageID, Content: welcomeContent, Description: welcomeDescription,
		Status: defaultItemStatus, Subtasks: []Subtask{}, Activities: []Activity{}, CreatedAt: now, UpdatedAt: now,
	})
	return b, nil
}

func (f *fakeStore) BoardOwner(_ context.Context, boardID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boardByID(boardID)
	if !ok {
		return "", ErrNotFound
	}
	return b.UserID, nil
}

func (f *fakeStore) StagesByBoard(_ context.Context, boardID string) ([]Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Stage{}
	for _, st := range f.stages {
		if st.BoardID == boardID {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeStore) ItemRowsByBoard(_ context.Context, boardID string) ([]ItemRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []ItemRow{}
	for _, it := range f.items {
		st, ok := f.stageByID(it.StageID)
		if !ok || st.BoardID != boardID {
			continue
		}
		if row, ok := f.raw[it.ID]; ok {
			out = append(out, row)
			continue
		}
		subtasks, _ := encodeSubtasks(it.Subtasks)
		activities, _ := encodeActivities(it.Activities)
		out = append(out, ItemRow{
			ID: it.ID, StageID: it.StageID, Content: it.Content, Description: it.Description,
			Status: it.Status, Progress: it.Progress, Subtasks: subtasks, Activities: activities,
			CreatedAt: it.CreatedAt, UpdatedAt: it.UpdatedAt,
		})
	}
	return out, nil
}

func (f *fakeStore) stageByID(id string) (Stage, bool) {
	for _, st := range f.stages {
		if st.ID == id {
			return st, true
		}
	}
	return Stage{}, false
}

func (f *fakeStore) CreateStage(_ context.Context, boardID, id, title string) (Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.stageByID(id); ok {
		return Stage{}, ErrConflict
	}
	maxPos := 0
	for _, st := range f.stages {
		if st.BoardID == boardID && st.Position > maxPos {
			maxPos = st.Position
		}
	}
	st := Stage{ID: id, BoardID: boardID, Title: title, Position: maxPos + 1, CreatedAt: f.tick()}
	f.stages = append(f.stages, st)
	return st, nil
}

func (f *fakeStore) DeleteStage(_ context.Context, boardID, stageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stageByID(stageID)
	if !ok || st.BoardID != boardID {
		return ErrNotFound
	}
	items := f.items[:0]
	for _, it := range f.items {
		if it.StageID != stageID {
			items = append(items, it)
		}
	}
	f.items = items
	var kept, rest []Stage
	for _, s := range f.stages {
		switch {
		case s.ID == stageID:
		case s.BoardID == boardID:
			rest = append(rest, s)
		default:
			kept = append(kept, s)
		}
	}
	reindexAfterStageDeletion(rest, st.Position)
	f.stages = append(kept, rest...)
	return nil
}

func (f *fakeStore) ItemOwner(_ context.Context, boardID, itemID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID != itemID {
			continue
		}
		st, ok := f.stageByID(it.StageID)
		if !ok || st.BoardID != boardID {
			break
		}
		b, _ := f.boardByID(boardID)
		return b.UserID, nil
	}
	return "", ErrNotFound
}

func (f *fakeStore) CreateItem(_ context.Context, boardID string, it Item) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stageByID(it.StageID)
	if !ok || st.BoardID != boardID {
		return Item{}, ErrNotFound
	}
	for _, x := range f.items {
		if x.ID == it.ID {
			return Item{}, ErrConflict
		}
	}
	it.CreatedAt = f.tick()
	it.UpdatedAt = it.CreatedAt
	it = normalizeItem(it)
	f.items = append(f.items, it)
	return it, nil
}

func (f *fakeStore) UpdateItem(_ context.Context, boardID, itemID string, it Item) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stageByID(it.StageID)
	if !ok || st.BoardID != boardID {
		return Item{}, ErrNotFound
	}
	for i, x := range f.items {
		if x.ID != itemID {
			continue
		}
		it.ID = itemID
		it.CreatedAt = x.CreatedAt
		it.UpdatedAt = f.tick()
		it = normalizeItem(it)
		f.items[i] = it
		return it, nil
	}
	return Item{}, ErrNotFound
}

func (f *fakeStore) DeleteItem(_ context.Context, boardID, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		st, _ := f.stageByID(it.StageID)
		if it.ID == itemID && st.BoardID == boardID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
