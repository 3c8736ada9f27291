package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/storage"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for schema and connection events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store implements storage.Storage on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	closed  atomic.Bool
}

var (
	_ storage.Storage       = (*Store)(nil)
	_ storage.ReverseIndex  = (*Store)(nil)
	_ storage.DatatypeIndex = (*Store)(nil)
	_ storage.ProxyLookup   = (*Store)(nil)
)

// New wraps db, creating the schema if needed. The store owns db and closes
// it on Close.
func New(ctx context.Context, db *sql.DB, d Dialect, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: d,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if d.maxConns > 0 {
		db.SetMaxOpenConns(d.maxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	stmts := append(append(append([]string{}, d.setup...), d.schema...), indexes...)
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return nil, fmt.Errorf("%s schema: %w", d.Name, err)
		}
	}

	s.logger.DebugContext(ctx, "sql store ready", "dialect", d.Name)
	return s, nil
}

func (s *Store) check(ctx context.Context, op string, id model.ProxyID) error {
	if s.closed.Load() {
		return storage.NewError(op, id, storage.ErrClosed)
	}
	return storage.NewError(op, id, ctx.Err())
}

// AllocateProxy implements storage.Storage.
func (s *Store) AllocateProxy(ctx context.Context) (model.ProxyID, error) {
	if err := s.check(ctx, "allocate_proxy", model.NoProxy); err != nil {
		return model.NoProxy, err
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, "INSERT INTO tmrm_proxy DEFAULT VALUES RETURNING id").Scan(&id); err != nil {
		return model.NoProxy, storage.NewError("allocate_proxy", model.NoProxy, err)
	}
	return model.ProxyID(id), nil
}

// AddProperty implements storage.Storage.
func (s *Store) AddProperty(ctx context.Context, p model.Property) error {
	if err := s.check(ctx, "add_property", p.Source); err != nil {
		return err
	}
	if !p.Value.IsValid() {
		return storage.NewError("add_property", p.Source, storage.ErrInvalidValue)
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		refs := []model.ProxyID{p.Source, p.Key}
		if id, ok := p.Value.Proxy(); ok {
			refs = append(refs, id)
		}
		for _, id := range refs {
			ok, err := s.hasProxy(ctx, tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return storage.ErrUnknownProxy
			}
		}

		var vproxy, vliteral, vdatatype any
		if id, ok := p.Value.Proxy(); ok {
			vproxy = int64(id)
		} else {
			l, _ := p.Value.Literal()
			vliteral, vdatatype = l.Value(), l.Datatype()
		}
		_, err := tx.ExecContext(ctx, s.dialect.bind(
			"INSERT INTO tmrm_property (source, pkey, vproxy, vliteral, vdatatype) VALUES (?, ?, ?, ?, ?)"),
			int64(p.Source), int64(p.Key), vproxy, vliteral, vdatatype)
		return err
	})
	return storage.NewError("add_property", p.Source, err)
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, ignoreDone(tx.Rollback()))
	}
	return tx.Commit()
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) hasProxy(ctx context.Context, q queryer, id model.ProxyID) (bool, error) {
	if id == model.NoProxy {
		return false, nil
	}
	var n int
	err := q.QueryRowContext(ctx, s.dialect.bind("SELECT COUNT(*) FROM tmrm_proxy WHERE id = ?"), int64(id)).Scan(&n)
	return n > 0, err
}

// HasProxy implements storage.ProxyLookup.
func (s *Store) HasProxy(ctx context.Context, id model.ProxyID) (bool, error) {
	if err := s.check(ctx, "has_proxy", id); err != nil {
		return false, err
	}
	ok, err := s.hasProxy(ctx, s.db, id)
	return ok, storage.NewError("has_proxy", id, err)
}

const selectProperty = "SELECT source, pkey, vproxy, vliteral, vdatatype FROM tmrm_property"

// Properties implements storage.Storage.
func (s *Store) Properties(ctx context.Context, source, key model.ProxyID) (storage.Cursor[model.Property], error) {
	if err := s.check(ctx, "properties", source); err != nil {
		return nil, err
	}

	q, args := selectProperty+" WHERE source = ?", []any{int64(source)}
	if key != model.NoProxy {
		q, args = q+" AND pkey = ?", append(args, int64(key))
	}
	props, err := s.queryProperties(ctx, q+" ORDER BY seq", args...)
	if err != nil {
		return nil, storage.NewError("properties", source, err)
	}
	return storage.NewSliceCursor(props), nil
}

// Referrers implements storage.ReverseIndex.
func (s *Store) Referrers(ctx context.Context, v model.Value, key model.ProxyID) (storage.Cursor[model.Property], error) {
	if err := s.check(ctx, "referrers", model.NoProxy); err != nil {
		return nil, err
	}

	var (
		q    string
		args []any
	)
	switch v.Kind() {
	case model.KindProxy:
		id, _ := v.Proxy()
		q, args = selectProperty+" WHERE vproxy = ?", []any{int64(id)}
	case model.KindLiteral:
		l, _ := v.Literal()
		q, args = selectProperty+" WHERE vliteral = ? AND vdatatype = ?", []any{l.Value(), l.Datatype()}
	default:
		return storage.NewSliceCursor[model.Property](nil), nil
	}
	if key != model.NoProxy {
		q, args = q+" AND pkey = ?", append(args, int64(key))
	}
	props, err := s.queryProperties(ctx, q+" ORDER BY seq", args...)
	if err != nil {
		return nil, storage.NewError("referrers", model.NoProxy, err)
	}
	return storage.NewSliceCursor(props), nil
}

// PropertiesByDatatype implements storage.DatatypeIndex.
func (s *Store) PropertiesByDatatype(ctx context.Context, datatype string) (storage.Cursor[model.Property], error) {
	if err := s.check(ctx, "properties_by_datatype", model.NoProxy); err != nil {
		return nil, err
	}
	props, err := s.queryProperties(ctx,
		selectProperty+" WHERE vliteral IS NOT NULL AND vdatatype = ? ORDER BY seq", datatype)
	if err != nil {
		return nil, storage.NewError("properties_by_datatype", model.NoProxy, err)
	}
	return storage.NewSliceCursor(props), nil
}

// queryProperties reads all matching rows before returning. Holding a
// result set open would pin the only SQLite connection and block nested
// reads.
func (s *Store) queryProperties(ctx context.Context, q string, args ...any) ([]model.Property, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.bind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Property
	for rows.Next() {
		var (
			source, key         int64
			vproxy              sql.NullInt64
			vliteral, vdatatype sql.NullString
		)
		if err := rows.Scan(&source, &key, &vproxy, &vliteral, &vdatatype); err != nil {
			return nil, err
		}
		p := model.Property{Source: model.ProxyID(source), Key: model.ProxyID(key)}
		if vproxy.Valid {
			p.Value = model.ProxyValue(model.ProxyID(vproxy.Int64))
		} else {
			p.Value = model.LiteralValue(model.NewLiteral(vliteral.String, vdatatype.String))
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Proxies implements storage.Storage. Handles are returned in ascending order.
func (s *Store) Proxies(ctx context.Context) (storage.Cursor[model.ProxyID], error) {
	if err := s.check(ctx, "proxies", model.NoProxy); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM tmrm_proxy ORDER BY id")
	if err != nil {
		return nil, storage.NewError("proxies", model.NoProxy, err)
	}
	defer rows.Close()

	var ids []model.ProxyID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storage.NewError("proxies", model.NoProxy, err)
		}
		ids = append(ids, model.ProxyID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError("proxies", model.NoProxy, err)
	}
	return storage.NewSliceCursor(ids), nil
}

// Close implements storage.Storage.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
