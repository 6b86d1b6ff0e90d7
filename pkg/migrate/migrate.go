// Package migrate applies the goose SQL migrations. The migration files are
// embedded so every binary carries the schema it was built against.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// SourceDir is where new migration files are created during development.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations exposes the embedded migration set, rooted at the migrations
// directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Command is a goose verb that needs a database connection.
type Command string

const (
	CommandUp     Command = "up"
	CommandDown   Command = "down"
	CommandStatus Command = "status"
	CommandRedo   Command = "redo"
)

func (c Command) valid() bool {
	switch c {
	case CommandUp, CommandDown, CommandStatus, CommandRedo:
		return true
	}
	return false
}

// Migrator runs goose against one database and one migration set.
type Migrator struct {
	db   *sql.DB
	fsys fs.FS
}

// New returns a Migrator over the embedded migrations.
func New(db *sql.DB) (*Migrator, error) {
	return NewWithFS(db, Migrations())
}

func NewWithFS(db *sql.DB, fsys fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		return nil, errors.New("migration filesystem is required")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{db: db, fsys: fsys}, nil
}

func (m *Migrator) Run(ctx context.Context, cmd Command) error {
	if !cmd.valid() {
		return fmt.Errorf("unsupported migrate command %q", cmd)
	}
	goose.SetBaseFS(m.fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.RunContext(ctx, string(cmd), m.db, "."); err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

// To moves the schema up or down to version, a YYYYMMDDHHMMSS stamp.
func (m *Migrator) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", version, err)
	}

	goose.SetBaseFS(m.fsys)
	defer goose.SetBaseFS(nil)

	current, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current < target:
		err = goose.UpToContext(ctx, m.db, ".", target)
	case current > target:
		err = goose.DownToContext(ctx, m.db, ".", target)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
