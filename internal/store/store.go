// Package store is the persistence gateway: a process-wide pgx connection
// pool and the parameterised statements for the users and persons tables.
// No user input is ever interpolated into SQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/personstore/personstore/internal/config"
	"github.com/personstore/personstore/internal/model"
)

var (
	// ErrUnavailable reports a driver-level failure. Callers surface it as
	// "database unavailable" and keep the connection open.
	ErrUnavailable = errors.New("store: database unavailable")
	// ErrConstraint reports a write the schema rejected.
	ErrConstraint = errors.New("store: constraint violation")
	// ErrDuplicateUser reports a username collision on registration.
	ErrDuplicateUser = errors.New("store: username already taken")
)

const (
	sqlFindAllPersons = `SELECT id, owner_id, name, cord_x, cord_y, creation_date,
		height, weight, color, country, location_x, location_y, location_name
		FROM persons ORDER BY id`
	sqlSavePerson = `INSERT INTO persons (owner_id, name, cord_x, cord_y, height,
		weight, color, country, location_x, location_y, location_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, creation_date`
	sqlRemovePersonById = `DELETE FROM persons WHERE id = $1`

	sqlFindUserByUsername   = `SELECT id, username, password FROM users WHERE username = $1`
	sqlExistsUserByUsername = `SELECT count(*) FROM users WHERE username = $1`
	sqlSaveUser             = `INSERT INTO users (username, password) VALUES ($1, $2) RETURNING id`
)

const connectTimeout = 10 * time.Second

// Store is the single process-wide handle to the SQL database.
type Store struct {
	pool *pgxpool.Pool
}

// Open builds the connection pool from the database configuration and
// verifies the server is reachable. The pool re-checks connection health on
// every acquire, so a connection found dead at the point of use is replaced
// transparently.
func Open(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	slog.Info("database connected", "host", cfg.Host, "port", cfg.Port, "dbname", cfg.Name)
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Stat exposes pool statistics for the admin API.
func (s *Store) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}

// FindAllPersons returns every person ordered by id.
func (s *Store) FindAllPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx, sqlFindAllPersons)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, mapError(err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return persons, nil
}

// SavePerson inserts the person and returns a copy with the store-assigned
// id and creation date. The caller's Id and CreationDate are ignored.
func (s *Store) SavePerson(ctx context.Context, p model.Person) (model.Person, error) {
	row := s.pool.QueryRow(ctx, sqlSavePerson,
		p.OwnerId, p.Name, p.Coordinates.X, p.Coordinates.Y,
		p.Height, p.Weight, p.HairColor.String(), p.Nationality.String(),
		p.Location.X, p.Location.Y, p.Location.Name)
	if err := row.Scan(&p.Id, &p.CreationDate); err != nil {
		return model.Person{}, mapError(err)
	}
	p.CreationDate = p.CreationDate.UTC().Truncate(time.Millisecond)
	return p, nil
}

// RemovePersonById deletes the row and reports whether one was removed.
func (s *Store) RemovePersonById(ctx context.Context, id int32) (bool, error) {
	tag, err := s.pool.Exec(ctx, sqlRemovePersonById, id)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindUserByUsername returns the user or nil when absent.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, sqlFindUserByUsername, username).
		Scan(&u.Id, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// ExistsUserByUsername reports whether the username is taken.
func (s *Store) ExistsUserByUsername(ctx context.Context, username string) (bool, error) {
	var count int
	if err := s.pool.QueryRow(ctx, sqlExistsUserByUsername, username).Scan(&count); err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

// SaveUser inserts a new user row with the already-hashed password.
func (s *Store) SaveUser(ctx context.Context, username, passwordHash string) (*model.User, error) {
	u := model.User{Username: username, PasswordHash: passwordHash}
	err := s.pool.QueryRow(ctx, sqlSaveUser, username, passwordHash).Scan(&u.Id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, mapError(err)
	}
	return &u, nil
}

// personRow abstracts pgx.Rows / pgx.Row for scanning.
type personRow interface {
	Scan(dest ...any) error
}

func scanPerson(row personRow) (model.Person, error) {
	var (
		p       model.Person
		color   string
		country string
	)
	err := row.Scan(&p.Id, &p.OwnerId, &p.Name, &p.Coordinates.X, &p.Coordinates.Y,
		&p.CreationDate, &p.Height, &p.Weight, &color, &country,
		&p.Location.X, &p.Location.Y, &p.Location.Name)
	if err != nil {
		return model.Person{}, err
	}
	if p.HairColor, err = model.ParseColor(color); err != nil {
		return model.Person{}, err
	}
	if p.Nationality, err = model.ParseCountry(country); err != nil {
		return model.Person{}, err
	}
	p.CreationDate = p.CreationDate.UTC().Truncate(time.Millisecond)
	return p, nil
}

// SQLSTATE class 23 covers integrity constraint violations; 23505 is the
// unique violation raised by the users username index.
const (
	pgUniqueViolation = "23505"
	pgIntegrityClass  = "23"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgIntegrityClass {
		return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
