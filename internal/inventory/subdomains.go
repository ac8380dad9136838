package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vulnverified/watchtower/internal/logger"
)

// Subdomains records every name any provider has reported. Rows are never
// removed here and scope membership is not re-checked.
type Subdomains struct{ repo }

// Upsert stores subdomain under program. On a re-sighting only the provider
// tag can change: the last provider to report it wins.
func (s *Subdomains) Upsert(ctx context.Context, program, subdomain, provider string) (Outcome, error) {
	program = NormalizeName(program)
	subdomain = NormalizeName(subdomain)
	provider = NormalizeName(provider)
	if program == "" || subdomain == "" {
		return Unchanged, fmt.Errorf("subdomain %q of program %q: %w", subdomain, program, ErrInvalid)
	}

	var stored string
	err := s.db.get(ctx, &stored, `SELECT provider FROM subdomains WHERE program = ? AND subdomain = ?`, program, subdomain)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = s.db.exec(ctx, `INSERT INTO subdomains (program, subdomain, scope, provider, created_at)
			VALUES (?, ?, ?, ?, ?)`, program, subdomain, ExtractScope(subdomain), provider, s.db.stamp())
		if err != nil {
			s.log.Error("inserting subdomain", logger.String("program", program), logger.String("subdomain", subdomain), logger.Error(err))
			return Unchanged, fmt.Errorf("inserting subdomain %s: %w", subdomain, err)
		}
		s.log.Debug("subdomain added", logger.String("program", program), logger.String("subdomain", subdomain), logger.String("provider", provider))
		return Inserted, nil
	case err != nil:
		s.log.Error("looking up subdomain", logger.String("subdomain", subdomain), logger.Error(err))
		return Unchanged, fmt.Errorf("looking up subdomain %s: %w", subdomain, err)
	}

	if stored == provider {
		return Unchanged, nil
	}
	err = s.db.exec(ctx, `UPDATE subdomains SET provider = ? WHERE program = ? AND subdomain = ?`, provider, program, subdomain)
	if err != nil {
		s.log.Error("updating subdomain provider", logger.String("subdomain", subdomain), logger.Error(err))
		return Unchanged, fmt.Errorf("updating subdomain %s: %w", subdomain, err)
	}
	return Updated, nil
}

// ListByProgram returns the program's subdomains ordered by name.
func (s *Subdomains) ListByProgram(ctx context.Context, program string) ([]Subdomain, error) {
	var out []Subdomain
	err := s.db.sel(ctx, &out, `SELECT * FROM subdomains WHERE program = ? ORDER BY subdomain`, NormalizeName(program))
	if err != nil {
		return nil, fmt.Errorf("listing subdomains: %w", err)
	}
	return out, nil
}

// Names returns the distinct non-empty subdomain names of program.
func (s *Subdomains) Names(ctx context.Context, program string) ([]string, error) {
	var out []string
	err := s.db.sel(ctx, &out, `SELECT DISTINCT subdomain FROM subdomains
		WHERE program = ? AND subdomain <> '' ORDER BY subdomain`, NormalizeName(program))
	if err != nil {
		return nil, fmt.Errorf("listing subdomain names: %w", err)
	}
	return out, nil
}
