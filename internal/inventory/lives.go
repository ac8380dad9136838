package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vulnverified/watchtower/internal/logger"
)

// Lives stores subdomains that resolved.
type Lives struct{ repo }

// Upsert records a resolved subdomain. ips and cdn are compared as sets:
// a difference in either replaces both; otherwise only last_update moves.
func (l *Lives) Upsert(ctx context.Context, program, subdomain string, ips, cdn []string) (Outcome, error) {
	program = NormalizeName(program)
	subdomain = NormalizeName(subdomain)
	if program == "" || subdomain == "" {
		return Unchanged, fmt.Errorf("live subdomain %q of program %q: %w", subdomain, program, ErrInvalid)
	}
	newIPs := NewLowerSet(ips...)
	newCDN := NewLowerSet(cdn...)
	scope := ExtractScope(subdomain)
	now := l.db.stamp()
	fields := []logger.Field{logger.String("program", program), logger.String("subdomain", subdomain)}

	var stored LiveSubdomain
	err := l.db.get(ctx, &stored, `SELECT ips, cdn FROM live_subdomains WHERE program = ? AND subdomain = ?`, program, subdomain)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = l.db.exec(ctx, `INSERT INTO live_subdomains (program, subdomain, scope, ips, cdn, created_at, last_update)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, program, subdomain, scope, newIPs, newCDN, now, now)
		if err != nil {
			l.log.Error("inserting live subdomain", append(fields, logger.Error(err))...)
			return Unchanged, fmt.Errorf("inserting live subdomain %s: %w", subdomain, err)
		}
		l.log.Info("fresh live subdomain", fields...)
		l.alert(ctx, "'%s' (fresh live) has been added to '%s' program", subdomain, program)
		return Inserted, nil
	case err != nil:
		l.log.Error("looking up live subdomain", append(fields, logger.Error(err))...)
		return Unchanged, fmt.Errorf("looking up live subdomain %s: %w", subdomain, err)
	}

	if stored.IPs.Equal(newIPs) && stored.CDN.Equal(newCDN) {
		err = l.db.exec(ctx, `UPDATE live_subdomains SET last_update = ? WHERE program = ? AND subdomain = ?`,
			now, program, subdomain)
		if err != nil {
			l.log.Error("touching live subdomain", append(fields, logger.Error(err))...)
			return Unchanged, fmt.Errorf("touching live subdomain %s: %w", subdomain, err)
		}
		return Unchanged, nil
	}

	err = l.db.exec(ctx, `UPDATE live_subdomains SET scope = ?, ips = ?, cdn = ?, last_update = ?
		WHERE program = ? AND subdomain = ?`, scope, newIPs, newCDN, now, program, subdomain)
	if err != nil {
		l.log.Error("updating live subdomain", append(fields, logger.Error(err))...)
		return Unchanged, fmt.Errorf("updating live subdomain %s: %w", subdomain, err)
	}
	l.log.Info("live subdomain changed", append(fields,
		logger.Strings("old_ips", stored.IPs), logger.Strings("ips", newIPs),
		logger.Strings("old_cdn", stored.CDN), logger.Strings("cdn", newCDN))...)
	l.alert(ctx, "'%s' changed: ips %v -> %v, cdn %v -> %v", subdomain, []string(stored.IPs), []string(newIPs), []string(stored.CDN), []string(newCDN))
	return Updated, nil
}

// List returns every live subdomain across all programs.
func (l *Lives) List(ctx context.Context) ([]LiveSubdomain, error) {
	var out []LiveSubdomain
	if err := l.db.sel(ctx, &out, `SELECT * FROM live_subdomains ORDER BY program, subdomain`); err != nil {
		return nil, fmt.Errorf("listing live subdomains: %w", err)
	}
	return out, nil
}

// ListByProgram returns the program's live subdomains.
func (l *Lives) ListByProgram(ctx context.Context, program string) ([]LiveSubdomain, error) {
	var out []LiveSubdomain
	err := l.db.sel(ctx, &out, `SELECT * FROM live_subdomains WHERE program = ? ORDER BY subdomain`, NormalizeName(program))
	if err != nil {
		return nil, fmt.Errorf("listing live subdomains: %w", err)
	}
	return out, nil
}
