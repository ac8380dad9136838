package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vulnverified/watchtower/internal/logger"
)

// DefaultURLSource tags URL records when the caller gives no source.
const DefaultURLSource = "waybackurls"

// URLs stores archived URLs that carried interesting parameters.
type URLs struct{ repo }

// BulkResult counts what a BulkUpsert did.
type BulkResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Upsert stores rec keyed by (Program, URL). A re-sighting unions the
// parameter sets and bumps the occurrence count.
func (u *URLs) Upsert(ctx context.Context, rec URLRecord) (Outcome, error) {
	rec.Program = NormalizeName(rec.Program)
	rec.Scope = NormalizeName(rec.Scope)
	rec.URL = strings.TrimSpace(rec.URL)
	rec.Parameters = NewLowerSet(rec.Parameters...)
	rec.Source = strings.TrimSpace(rec.Source)
	if rec.Source == "" {
		rec.Source = DefaultURLSource
	}
	if rec.Program == "" || rec.URL == "" {
		return Unchanged, fmt.Errorf("url %q of program %q: %w", rec.URL, rec.Program, ErrInvalid)
	}
	now := u.db.stamp()
	fields := []logger.Field{logger.String("program", rec.Program), logger.String("url", rec.URL)}

	var stored URLRecord
	err := u.db.get(ctx, &stored, `SELECT parameters, occurrences FROM urls WHERE program = ? AND url = ?`, rec.Program, rec.URL)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = u.db.exec(ctx, `INSERT INTO urls (program, scope, url, parameters, source, occurrences, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)`, rec.Program, rec.Scope, rec.URL, rec.Parameters, rec.Source, now, now)
		if err != nil {
			u.log.Error("inserting url", append(fields, logger.Error(err))...)
			return Unchanged, fmt.Errorf("inserting url %s: %w", rec.URL, err)
		}
		return Inserted, nil
	case err != nil:
		u.log.Error("looking up url", append(fields, logger.Error(err))...)
		return Unchanged, fmt.Errorf("looking up url %s: %w", rec.URL, err)
	}

	occurrences := stored.Occurrences
	if occurrences < 1 {
		occurrences = 1
	}
	err = u.db.exec(ctx, `UPDATE urls SET scope = ?, parameters = ?, source = ?, occurrences = ?, last_seen = ?
		WHERE program = ? AND url = ?`,
		rec.Scope, stored.Parameters.Union(rec.Parameters), rec.Source, occurrences+1, now, rec.Program, rec.URL)
	if err != nil {
		u.log.Error("updating url", append(fields, logger.Error(err))...)
		return Unchanged, fmt.Errorf("updating url %s: %w", rec.URL, err)
	}
	return Updated, nil
}

// BulkUpsert upserts every record, continuing past failures. The returned
// error joins all per-record failures.
func (u *URLs) BulkUpsert(ctx context.Context, records []URLRecord) (BulkResult, error) {
	var res BulkResult
	var errs []error
	for _, rec := range records {
		outcome, err := u.Upsert(ctx, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		switch outcome {
		case Inserted:
			res.Inserted++
		case Updated:
			res.Updated++
		}
	}
	return res, errors.Join(errs...)
}

// ListByProgram returns the program's URL records, most seen first.
func (u *URLs) ListByProgram(ctx context.Context, program string) ([]URLRecord, error) {
	var out []URLRecord
	err := u.db.sel(ctx, &out, `SELECT * FROM urls WHERE program = ? ORDER BY occurrences DESC, url`, NormalizeName(program))
	if err != nil {
		return nil, fmt.Errorf("listing urls: %w", err)
	}
	return out, nil
}
