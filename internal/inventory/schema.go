package inventory

import "strings"

var tables = []string{
	`CREATE TABLE IF NOT EXISTS programs (
	id {{id}},
	program_name TEXT NOT NULL UNIQUE,
	scopes {{json}} NOT NULL,
	ooscopes {{json}} NOT NULL,
	config {{json}} NOT NULL,
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS subdomains (
	id {{id}},
	program TEXT NOT NULL,
	subdomain TEXT NOT NULL,
	scope TEXT NOT NULL,
	provider TEXT NOT NULL,
	created_at {{ts}} NOT NULL,
	UNIQUE (program, subdomain)
)`,
	`CREATE TABLE IF NOT EXISTS live_subdomains (
	id {{id}},
	program TEXT NOT NULL,
	subdomain TEXT NOT NULL,
	scope TEXT NOT NULL,
	ips {{json}} NOT NULL,
	cdn {{json}} NOT NULL,
	created_at {{ts}} NOT NULL,
	last_update {{ts}} NOT NULL,
	UNIQUE (program, subdomain)
)`,
	`CREATE TABLE IF NOT EXISTS http (
	id {{id}},
	program TEXT NOT NULL,
	subdomain TEXT NOT NULL,
	scope TEXT NOT NULL,
	ips {{json}} NOT NULL,
	tech {{json}} NOT NULL,
	title TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	headers {{json}} NOT NULL,
	url TEXT NOT NULL,
	final_url TEXT NOT NULL,
	favicon TEXT NOT NULL,
	created_at {{ts}} NOT NULL,
	last_update {{ts}} NOT NULL,
	UNIQUE (program, subdomain)
)`,
	`CREATE TABLE IF NOT EXISTS ports (
	id {{id}},
	program TEXT NOT NULL,
	subdomain TEXT NOT NULL,
	host TEXT NOT NULL,
	port INTEGER NOT NULL,
	protocol TEXT NOT NULL,
	service TEXT NOT NULL,
	source TEXT NOT NULL,
	metadata {{json}} NOT NULL,
	created_at {{ts}} NOT NULL,
	last_update {{ts}} NOT NULL,
	UNIQUE (program, subdomain, host, port, protocol)
)`,
	`CREATE TABLE IF NOT EXISTS urls (
	id {{id}},
	program TEXT NOT NULL,
	scope TEXT NOT NULL,
	url TEXT NOT NULL,
	parameters {{json}} NOT NULL,
	source TEXT NOT NULL,
	occurrences INTEGER NOT NULL,
	first_seen {{ts}} NOT NULL,
	last_seen {{ts}} NOT NULL,
	UNIQUE (program, url)
)`,
}

func schema(driver string) []string {
	r := strings.NewReplacer(
		"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{json}}", "TEXT",
		"{{ts}}", "TEXT",
	)
	if driver == "postgres" {
		r = strings.NewReplacer(
			"{{id}}", "BIGSERIAL PRIMARY KEY",
			"{{json}}", "JSONB",
			"{{ts}}", "TIMESTAMPTZ",
		)
	}

	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = r.Replace(t)
	}
	return out
}
