package main

import "time"

type Role string

const (
	RoleDiscipler Role = "Discipler"
	RoleDisciple  Role = "Disciple"
)

func (r Role) Valid() bool { return r == RoleDiscipler || r == RoleDisciple }

// Opposite returns the counterpart role. Anything that is not a Disciple is
// paired with Disciples.
func (r Role) Opposite() Role {
	if r == RoleDisciple {
		return RoleDiscipler
	}
	return RoleDisciple
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Age       int       `json:"age"`
	Location  string    `json:"location"`
	Interests []string  `json:"interests"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Board struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// BoardSummary is a board as listed, with the size of its tree.
type BoardSummary struct {
	Board
	StageCount int `json:"stage_count"`
	ItemCount  int `json:"item_count"`
}

type Stage struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type Subtask struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// FileMeta describes an attachment referenced from an activity entry.
type FileMeta struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Activity is one entry of an item's log. Timestamp is kept verbatim as the
// client sent it.
type Activity struct {
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	File      *FileMeta `json:"file"`
}

const defaultItemStatus = "In Progress"

type Item struct {
	ID          string     `json:"id"`
	StageID     string     `json:"stage_id"`
	Content     string     `json:"content"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Subtasks    []Subtask  `json:"subtasks"`
	Activities  []Activity `json:"activities"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ItemRow is an items row as stored: subtasks and activities are still the
// raw JSON text of their columns.
type ItemRow struct {
	ID          string
	StageID     string
	Content     string
	Description string
	Status      string
	Progress    int
	Subtasks    string
	Activities  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Discipleship struct {
	ID          string    `json:"id"`
	DisciplerID string    `json:"discipler_id"`
	DiscipleID  string    `json:"disciple_id"`
	StartDate   time.Time `json:"start_date"`
}
