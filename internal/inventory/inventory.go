package inventory

import (
	"context"
	"fmt"

	"github.com/vulnverified/watchtower/internal/logger"
	"github.com/vulnverified/watchtower/internal/notify"
)

// Inventory groups the repositories over one DB.
type Inventory struct {
	DB         *DB
	Programs   *Programs
	Subdomains *Subdomains
	Lives      *Lives
	HTTP       *HTTPServices
	Ports      *Ports
	URLs       *URLs
}

// New wires every repository to db. notifier may be nil.
func New(db *DB, notifier notify.Notifier) *Inventory {
	r := repo{db: db, notifier: notifier, log: db.log}
	return &Inventory{
		DB:         db,
		Programs:   &Programs{r},
		Subdomains: &Subdomains{r},
		Lives:      &Lives{r},
		HTTP:       &HTTPServices{r},
		Ports:      &Ports{r},
		URLs:       &URLs{r},
	}
}

// repo is the state every repository shares.
type repo struct {
	db       *DB
	notifier notify.Notifier
	log      logger.Logger
}

func (r repo) alert(ctx context.Context, format string, args ...interface{}) {
	notify.Send(ctx, r.notifier, format, args...)
}

// Counts is the number of rows per table.
type Counts struct {
	Programs   int `json:"programs"`
	Subdomains int `json:"subdomains"`
	Live       int `json:"live_subdomains"`
	HTTP       int `json:"http"`
	Ports      int `json:"ports"`
	URLs       int `json:"urls"`
}

// Counts tallies rows, restricted to program when it is non-empty.
func (inv *Inventory) Counts(ctx context.Context, program string) (Counts, error) {
	var c Counts
	program = NormalizeName(program)

	targets := []struct {
		dest   *int
		table  string
		column string
	}{
		{&c.Programs, "programs", "program_name"},
		{&c.Subdomains, "subdomains", "program"},
		{&c.Live, "live_subdomains", "program"},
		{&c.HTTP, "http", "program"},
		{&c.Ports, "ports", "program"},
		{&c.URLs, "urls", "program"},
	}
	for _, t := range targets {
		q := "SELECT COUNT(*) FROM " + t.table
		var args []interface{}
		if program != "" {
			q += " WHERE " + t.column + " = ?"
			args = append(args, program)
		}
		if err := inv.DB.get(ctx, t.dest, q, args...); err != nil {
			return Counts{}, fmt.Errorf("counting %s: %w", t.table, err)
		}
	}
	return c, nil
}
