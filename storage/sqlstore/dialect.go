package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	// Name is the descriptor value selecting the dialect.
	Name string
	// Driver is the database/sql driver name.
	Driver string

	schema []string
	// setup runs once per store, before the schema.
	setup []string
	// positional placeholders ($1, $2, ...) instead of ?.
	positional bool
	// maxConns bounds the pool; 0 leaves it unbounded.
	maxConns int
}

// SQLite uses modernc.org/sqlite. A single connection serves all requests
// so ":memory:" databases stay consistent.
var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tmrm_proxy (
			id INTEGER PRIMARY KEY AUTOINCREMENT
		)`,
		`CREATE TABLE IF NOT EXISTS tmrm_property (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			source    INTEGER NOT NULL REFERENCES tmrm_proxy (id),
			pkey      INTEGER NOT NULL REFERENCES tmrm_proxy (id),
			vproxy    INTEGER REFERENCES tmrm_proxy (id),
			vliteral  TEXT,
			vdatatype TEXT
		)`,
	},
	setup: []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	},
	maxConns: 1,
}

// Postgres uses github.com/lib/pq.
var Postgres = Dialect{
	Name:   "postgres",
	Driver: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tmrm_proxy (
			id BIGSERIAL PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS tmrm_property (
			seq       BIGSERIAL PRIMARY KEY,
			source    BIGINT NOT NULL REFERENCES tmrm_proxy (id),
			pkey      BIGINT NOT NULL REFERENCES tmrm_proxy (id),
			vproxy    BIGINT REFERENCES tmrm_proxy (id),
			vliteral  TEXT,
			vdatatype TEXT
		)`,
	},
	positional: true,
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS tmrm_property_source ON tmrm_property (source, pkey, seq)",
	"CREATE INDEX IF NOT EXISTS tmrm_property_vproxy ON tmrm_property (vproxy)",
	"CREATE INDEX IF NOT EXISTS tmrm_property_vliteral ON tmrm_property (vliteral, vdatatype)",
	"CREATE INDEX IF NOT EXISTS tmrm_property_vdatatype ON tmrm_property (vdatatype)",
}

// bind rewrites ? placeholders for dialects that number them.
func (d Dialect) bind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func dialectByName(name string) (Dialect, bool) {
	switch name {
	case SQLite.Name, "sqlite3":
		return SQLite, true
	case Postgres.Name, "postgresql", "pq":
		return Postgres, true
	default:
		return Dialect{}, false
	}
}
