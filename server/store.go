package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDataIntegrity marks stored data that cannot be decoded. It points at
	// an earlier bad write and is never masked.
	ErrDataIntegrity = errors.New("data integrity")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func newID() string { return uuid.NewString() }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Users

const userColumns = `id, name, role, age, location, interests, email, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (User, error) {
	var u User
	var interests string
	dest := append([]any{&u.ID, &u.Name, &u.Role, &u.Age, &u.Location, &interests, &u.Email, &u.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return User{}, err
	}
	u.Interests = []string{}
	if interests != "" {
		if err := json.Unmarshal([]byte(interests), &u.Interests); err != nil {
			return User{}, fmt.Errorf("%w: user %s interests: %w", ErrDataIntegrity, u.ID, err)
		}
	}
	return u, nil
}

func (s *Store) queryUsers(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u User, passwordHash string) (User, error) {
	if u.Interests == nil {
		u.Interests = []string{}
	}
	interests, err := json.Marshal(u.Interests)
	if err != nil {
		return User{}, err
	}
	err = s.db.QueryRowContext(ctx, `insert into users(id, name, role, age, location, interests, email, password_hash)
		values($1,$2,$3,$4,$5,$6,$7,$8) returning created_at`,
		u.ID, u.Name, u.Role, u.Age, u.Location, string(interests), u.Email, passwordHash).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return User{}, ErrConflict
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate verifies the password for email. Unknown email and wrong
// password both yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	var hash string
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+`, password_hash from users where email=$1`, email), &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if checkPassword(hash, password) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx, `select `+userColumns+` from users order by created_at, id`)
}

// Discipleship

func (s *Store) Disciples(ctx context.Context, disciplerID string) ([]User, error) {
	return s.queryUsers(ctx, `select u.id, u.name, u.role, u.age, u.location, u.interests, u.email, u.created_at
		from users u join discipleship d on u.id = d.disciple_id
		where d.discipler_id=$1 order by d.start_date, u.id`, disciplerID)
}

func (s *Store) Discipler(ctx context.Context, discipleID string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select u.id, u.name, u.role, u.age, u.location, u.interests, u.email, u.created_at
		from users u join discipleship d on u.id = d.discipler_id
		where d.disciple_id=$1`, discipleID))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// CreateDiscipleship links a disciple to a discipler. A disciple has at most
// one discipler; a second link is ErrConflict.
func (s *Store) CreateDiscipleship(ctx context.Context, disciplerID, discipleID string) (Discipleship, error) {
	d := Discipleship{ID: "disc_" + newID(), DisciplerID: disciplerID, DiscipleID: discipleID}
	err := s.db.QueryRowContext(ctx, `insert into discipleship(id, discipler_id, disciple_id) values($1,$2,$3) returning start_date`,
		d.ID, d.DisciplerID, d.DiscipleID).Scan(&d.StartDate)
	if isUniqueViolation(err) {
		return Discipleship{}, ErrConflict
	}
	if err != nil {
		return Discipleship{}, err
	}
	return d, nil
}

const schema = `
create table if not exists users(
	id text primary key,
	name text not null,
	role text not null check (role in ('Discipler', 'Disciple')),
	age integer not null,
	location text not null,
	interests text not null default '[]',
	email text unique not null,
	password_hash text not null,
	created_at timestamptz not null default now()
);

create table if not exists boards(
	id text primary key,
	user_id text not null references users(id) on delete cascade,
	title text not null check (length(title) > 0),
	created_at timestamptz not null default now()
);
create index if not exists boards_user_idx on boards(user_id);

create table if not exists stages(
	id text primary key,
	board_id text not null references boards(id) on delete cascade,
	title text not null,
	position integer not null default 0,
	created_at timestamptz not null default now()
);
create index if not exists stages_board_idx on stages(board_id);

create table if not exists items(
	id text primary key,
	stage_id text not null references stages(id) on delete cascade,
	content text not null,
	description text not null default '',
	status text not null default 'In Progress',
	progress integer not null default 0,
	subtasks text,
	activities text,
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now()
);
create index if not exists items_stage_idx on items(stage_id);

create table if not exists discipleship(
	id text primary key,
	discipler_id text not null references users(id) on delete cascade,
	disciple_id text unique not null references users(id) on delete cascade,
	start_date timestamptz not null default now()
);
create index if not exists discipleship_discipler_idx on discipleship(discipler_id);
`
