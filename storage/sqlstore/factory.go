package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hupe1980/tmrm/storage"

	// Register database/sql drivers.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Name is the backend name used in a sphere registry.
const Name = "sql"

// Open is a storage.Factory.
//
//	driver='sqlite' path='/var/lib/tmrm/map.db'
//	driver='sqlite' path=':memory:'
//	driver='postgres' dsn='postgres://user:pw@host/db?sslmode=disable'
//	driver='postgres' host='db' port='5432' user='tmrm' password='x' dbname='tmrm' sslmode='disable'
func Open(ctx context.Context, descriptor string) (storage.Storage, error) {
	s, err := open(ctx, descriptor)
	if err != nil {
		return nil, &storage.ConnectionError{Backend: Name, Err: err}
	}
	return s, nil
}

func open(ctx context.Context, descriptor string) (*Store, error) {
	d, err := storage.ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	dialect, ok := dialectByName(d.Get("driver", SQLite.Name))
	if !ok {
		return nil, fmt.Errorf("unknown driver %q", d.Get("driver", ""))
	}

	var dsn string
	switch dialect.Name {
	case SQLite.Name:
		dsn = d.Get("path", "")
		if dsn == "" {
			return nil, &storage.DescriptorError{Msg: "driver 'sqlite' requires path"}
		}
	case Postgres.Name:
		dsn = postgresDSN(d)
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// postgresDSN returns the dsn key, or a key/value connection string built
// from the individual descriptor keys.
func postgresDSN(d storage.Descriptor) string {
	if dsn := d.Get("dsn", ""); dsn != "" {
		return dsn
	}
	var parts []string
	for _, k := range []string{"host", "port", "user", "password", "dbname", "sslmode"} {
		if v, ok := d[k]; ok {
			parts = append(parts, k+"="+quoteConnValue(v))
		}
	}
	return strings.Join(parts, " ")
}

func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
