package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vulnverified/watchtower/internal/logger"
)

// Programs stores program definitions.
type Programs struct{ repo }

// ProgramInput is a program definition as registered from outside.
type ProgramInput struct {
	Name     string
	Scopes   []string
	OOScopes []string
	Config   map[string]interface{}
}

// Upsert registers or refreshes a program definition.
func (p *Programs) Upsert(ctx context.Context, in ProgramInput) (Outcome, error) {
	name := NormalizeName(in.Name)
	if name == "" {
		return Unchanged, fmt.Errorf("program name is empty: %w", ErrInvalid)
	}
	scopes := NewLowerSet(in.Scopes...)
	ooscopes := NewLowerSet(in.OOScopes...)
	config := JSONMap(in.Config)
	if config == nil {
		config = JSONMap{}
	}
	now := p.db.stamp()

	existing, err := p.Get(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		err = p.db.exec(ctx, `INSERT INTO programs (program_name, scopes, ooscopes, config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`, name, scopes, ooscopes, config, now, now)
		if err != nil {
			p.log.Error("inserting program", logger.String("program", name), logger.Error(err))
			return Unchanged, fmt.Errorf("inserting program %s: %w", name, err)
		}
		p.log.Info("program added", logger.String("program", name), logger.Int("scopes", len(scopes)))
		return Inserted, nil
	case err != nil:
		return Unchanged, err
	}

	if existing.Scopes.Equal(scopes) && existing.OOScopes.Equal(ooscopes) && existing.Config.Equal(config) {
		return Unchanged, nil
	}

	err = p.db.exec(ctx, `UPDATE programs SET scopes = ?, ooscopes = ?, config = ?, updated_at = ?
		WHERE program_name = ?`, scopes, ooscopes, config, now, name)
	if err != nil {
		p.log.Error("updating program", logger.String("program", name), logger.Error(err))
		return Unchanged, fmt.Errorf("updating program %s: %w", name, err)
	}
	p.log.Info("program updated", logger.String("program", name))
	return Updated, nil
}

// Get returns the named program or ErrNotFound.
func (p *Programs) Get(ctx context.Context, name string) (*Program, error) {
	name = NormalizeName(name)
	var prog Program
	err := p.db.get(ctx, &prog, `SELECT * FROM programs WHERE program_name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("program %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading program %s: %w", name, err)
	}
	return &prog, nil
}

// List returns all programs ordered by name.
func (p *Programs) List(ctx context.Context) ([]Program, error) {
	var out []Program
	if err := p.db.sel(ctx, &out, `SELECT * FROM programs ORDER BY program_name`); err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	return out, nil
}

// Delete removes a program and every row that belongs to it, in one transaction.
func (p *Programs) Delete(ctx context.Context, name string) error {
	name = NormalizeName(name)
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"live_subdomains", "subdomains", "http", "urls", "ports"} {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE program = ?"), name); err != nil {
			return fmt.Errorf("deleting %s rows of %s: %w", table, name, err)
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM programs WHERE program_name = ?"), name)
	if err != nil {
		return fmt.Errorf("deleting program %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("program %q: %w", name, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete of %s: %w", name, err)
	}
	p.log.Info("program deleted", logger.String("program", name))
	return nil
}
