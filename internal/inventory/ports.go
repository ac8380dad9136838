package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vulnverified/watchtower/internal/logger"
)

// DefaultProtocol is used when a scanner does not report one.
const DefaultProtocol = "tcp"

// Ports stores open ports. Identity is (program, subdomain, host, port, protocol).
type Ports struct{ repo }

// Upsert stores an open port. Host defaults to the subdomain and protocol to
// tcp. Service, source and metadata are refreshed on every sighting; a
// service change is alerted. A new scan timestamp alone leaves it Unchanged.
func (p *Ports) Upsert(ctx context.Context, port Port) (Outcome, error) {
	port.Program = NormalizeName(port.Program)
	port.Subdomain = NormalizeName(port.Subdomain)
	port.Host = NormalizeName(port.Host)
	if port.Host == "" {
		port.Host = port.Subdomain
	}
	port.Protocol = NormalizeName(port.Protocol)
	if port.Protocol == "" {
		port.Protocol = DefaultProtocol
	}
	port.Service = strings.TrimSpace(port.Service)
	port.Source = strings.TrimSpace(port.Source)
	if port.Metadata == nil {
		port.Metadata = JSONMap{}
	}
	if port.Program == "" || port.Subdomain == "" || port.Port <= 0 || port.Port > 65535 {
		return Unchanged, fmt.Errorf("port %s:%d of program %q: %w", port.Subdomain, port.Port, port.Program, ErrInvalid)
	}

	now := p.db.stamp()
	fields := []logger.Field{
		logger.String("program", port.Program),
		logger.String("subdomain", port.Subdomain),
		logger.Int("port", port.Port),
		logger.String("protocol", port.Protocol),
	}

	var stored Port
	err := p.db.get(ctx, &stored, `SELECT service, source, metadata FROM ports
		WHERE program = ? AND subdomain = ? AND host = ? AND port = ? AND protocol = ?`,
		port.Program, port.Subdomain, port.Host, port.Port, port.Protocol)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = p.db.exec(ctx, `INSERT INTO ports (program, subdomain, host, port, protocol, service, source, metadata,
			created_at, last_update) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			port.Program, port.Subdomain, port.Host, port.Port, port.Protocol, port.Service, port.Source, port.Metadata, now, now)
		if err != nil {
			p.log.Error("inserting port", append(fields, logger.Error(err))...)
			return Unchanged, fmt.Errorf("inserting port %s:%d: %w", port.Subdomain, port.Port, err)
		}
		p.log.Info("open port found", fields...)
		p.alert(ctx, "Found open %s/%d on %s (%s)", port.Protocol, port.Port, port.Subdomain, port.Program)
		return Inserted, nil
	case err != nil:
		p.log.Error("looking up port", append(fields, logger.Error(err))...)
		return Unchanged, fmt.Errorf("looking up port %s:%d: %w", port.Subdomain, port.Port, err)
	}

	outcome := Unchanged
	if stored.Service != port.Service || stored.Source != port.Source ||
		!withoutVolatile(stored.Metadata).Equal(withoutVolatile(port.Metadata)) {
		outcome = Updated
	}

	err = p.db.exec(ctx, `UPDATE ports SET service = ?, source = ?, metadata = ?, last_update = ?
		WHERE program = ? AND subdomain = ? AND host = ? AND port = ? AND protocol = ?`,
		port.Service, port.Source, port.Metadata, now,
		port.Program, port.Subdomain, port.Host, port.Port, port.Protocol)
	if err != nil {
		p.log.Error("updating port", append(fields, logger.Error(err))...)
		return Unchanged, fmt.Errorf("updating port %s:%d: %w", port.Subdomain, port.Port, err)
	}

	if stored.Service != port.Service {
		p.log.Info("port service changed", append(fields,
			logger.String("old_service", stored.Service), logger.String("service", port.Service))...)
		p.alert(ctx, "%s:%d (%s) service changed from '%s' to '%s'",
			port.Subdomain, port.Port, port.Protocol, stored.Service, port.Service)
	}
	return outcome, nil
}

// volatileMetadata keys change on every scan and never make a port Updated.
var volatileMetadata = []string{"timestamp"}

func withoutVolatile(m JSONMap) JSONMap {
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range volatileMetadata {
		delete(out, k)
	}
	return out
}

// ListByProgram returns the program's ports ordered by host and port.
func (p *Ports) ListByProgram(ctx context.Context, program string) ([]Port, error) {
	var out []Port
	err := p.db.sel(ctx, &out, `SELECT * FROM ports WHERE program = ? ORDER BY subdomain, host, port, protocol`,
		NormalizeName(program))
	if err != nil {
		return nil, fmt.Errorf("listing ports: %w", err)
	}
	return out, nil
}
