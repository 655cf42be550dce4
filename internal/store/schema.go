package store

import (
	"context"
	"fmt"
)

// Schema matches the authoritative fragments: users first, persons second
// (persons.owner_id references users.id).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id serial PRIMARY KEY,
		username text UNIQUE NOT NULL,
		password text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS persons (
		id serial PRIMARY KEY,
		owner_id bigint NOT NULL REFERENCES users(id),
		name text NOT NULL,
		cord_x int NOT NULL,
		cord_y int NOT NULL,
		creation_date timestamp DEFAULT now(),
		height int NOT NULL,
		weight int NOT NULL,
		color text NOT NULL,
		country text NOT NULL,
		location_x float NOT NULL,
		location_y float NULL,
		location_name text NULL
	)`,
}

// EnsureSchema creates the tables when missing. Not a migration facility:
// existing tables are left untouched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", mapError(err))
		}
	}
	return nil
}
