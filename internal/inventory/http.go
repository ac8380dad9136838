package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vulnverified/watchtower/internal/logger"
)

// HTTPServices stores the latest probe of each live subdomain.
type HTTPServices struct{ repo }

// Upsert stores svc, keyed by (Program, Subdomain). On a re-probe every field
// is overwritten; only title, status and favicon changes are alerted, one
// message per changed field.
func (h *HTTPServices) Upsert(ctx context.Context, svc HTTPService) (Outcome, error) {
	svc.Program = NormalizeName(svc.Program)
	svc.Subdomain = NormalizeName(svc.Subdomain)
	if svc.Program == "" || svc.Subdomain == "" {
		return Unchanged, fmt.Errorf("http service %q of program %q: %w", svc.Subdomain, svc.Program, ErrInvalid)
	}
	svc.Scope = ExtractScope(svc.Subdomain)
	svc.IPs = NewLowerSet(svc.IPs...)
	svc.Tech = NewStringSet(svc.Tech...)
	svc.Title = strings.TrimSpace(svc.Title)
	svc.URL = strings.TrimSpace(svc.URL)
	svc.FinalURL = strings.TrimSpace(svc.FinalURL)
	svc.Favicon = strings.TrimSpace(svc.Favicon)
	if svc.Headers == nil {
		svc.Headers = JSONMap{}
	}
	now := h.db.stamp()
	fields := []logger.Field{logger.String("program", svc.Program), logger.String("subdomain", svc.Subdomain)}

	var stored HTTPService
	err := h.db.get(ctx, &stored, `SELECT * FROM http WHERE program = ? AND subdomain = ?`, svc.Program, svc.Subdomain)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = h.db.exec(ctx, `INSERT INTO http (program, subdomain, scope, ips, tech, title, status_code, headers,
			url, final_url, favicon, created_at, last_update) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			svc.Program, svc.Subdomain, svc.Scope, svc.IPs, svc.Tech, svc.Title, svc.StatusCode, svc.Headers,
			svc.URL, svc.FinalURL, svc.Favicon, now, now)
		if err != nil {
			h.log.Error("inserting http service", append(fields, logger.Error(err))...)
			return Unchanged, fmt.Errorf("inserting http service %s: %w", svc.Subdomain, err)
		}
		h.log.Info("fresh http service", append(fields, logger.Int("status", svc.StatusCode))...)
		h.alert(ctx, "%s (fresh http) added to '%s'", svc.Subdomain, svc.Program)
		return Inserted, nil
	case err != nil:
		h.log.Error("looking up http service", append(fields, logger.Error(err))...)
		return Unchanged, fmt.Errorf("looking up http service %s: %w", svc.Subdomain, err)
	}

	changes := fingerprintChanges(stored, svc)
	outcome := Unchanged
	if len(changes) > 0 || !sameHTTPContent(stored, svc) {
		outcome = Updated
	}

	err = h.db.exec(ctx, `UPDATE http SET scope = ?, ips = ?, tech = ?, title = ?, status_code = ?, headers = ?,
		url = ?, final_url = ?, favicon = ?, last_update = ? WHERE program = ? AND subdomain = ?`,
		svc.Scope, svc.IPs, svc.Tech, svc.Title, svc.StatusCode, svc.Headers,
		svc.URL, svc.FinalURL, svc.Favicon, now, svc.Program, svc.Subdomain)
	if err != nil {
		h.log.Error("updating http service", append(fields, logger.Error(err))...)
		return Unchanged, fmt.Errorf("updating http service %s: %w", svc.Subdomain, err)
	}

	for _, change := range changes {
		h.log.Info("http fingerprint changed", append(fields, logger.String("change", change))...)
		h.alert(ctx, "%s %s", svc.Subdomain, change)
	}
	return outcome, nil
}

// fingerprintChanges describes each differing title/status/favicon.
func fingerprintChanges(old, cur HTTPService) []string {
	var changes []string
	if old.Title != cur.Title {
		changes = append(changes, fmt.Sprintf("title: '%s' -> '%s'", old.Title, cur.Title))
	}
	if old.StatusCode != cur.StatusCode {
		changes = append(changes, fmt.Sprintf("status: %d -> %d", old.StatusCode, cur.StatusCode))
	}
	if old.Favicon != cur.Favicon {
		changes = append(changes, fmt.Sprintf("favhash: '%s' -> '%s'", old.Favicon, cur.Favicon))
	}
	return changes
}

func sameHTTPContent(a, b HTTPService) bool {
	return a.Scope == b.Scope &&
		a.IPs.Equal(b.IPs) &&
		a.Tech.Equal(b.Tech) &&
		a.Headers.Equal(b.Headers) &&
		a.URL == b.URL &&
		a.FinalURL == b.FinalURL
}

// ListByProgram returns the program's http services.
func (h *HTTPServices) ListByProgram(ctx context.Context, program string) ([]HTTPService, error) {
	var out []HTTPService
	err := h.db.sel(ctx, &out, `SELECT * FROM http WHERE program = ? ORDER BY subdomain`, NormalizeName(program))
	if err != nil {
		return nil, fmt.Errorf("listing http services: %w", err)
	}
	return out, nil
}
