// Package storage is the durable entity store for transactions and
// categories, backed by a single SQLite file.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by point lookups when no row matches.
// Deletes never return it: deleting an absent row is a no-op.
var ErrNotFound = errors.New("not found")

// StorageError marks an I/O failure of the underlying database. The store
// never retries; whether to retry the whole operation is the caller's call.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err originated from a database fault.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store owns the durable state. All mutation paths funnel through it; the
// single connection below means SQLite processes one statement at a time,
// so a read never observes a half-committed mutation.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath, runs migrations and seeds
// the default categories when the table is empty. Construct one Store at
// startup and pass it by handle; there is no global instance.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// One connection: statements are serialized by construction.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}

	if err := s.seedDefaultCategories(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertTransaction persists t and returns the stored row. A zero ID gets a
// fresh surrogate key; a zero timestamp gets the current instant; an empty
// category name falls back to "Uncategorized". Validation here is the last
// line of defense behind the facade.
func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CategoryName == "" {
		t.CategoryName = core.DefaultCategoryName
	}
	if t.Timestamp == 0 {
		t.Timestamp = time.Now().UnixMilli()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	var imagePath sql.NullString
	if t.ImagePath != "" {
		imagePath = sql.NullString{String: t.ImagePath, Valid: true}
	}

	var (
		res sql.Result
		err error
	)
	if t.ID == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO transactions (amount_cents, type, description, category_name, image_path, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.Amount.Cents, string(t.Type), t.Description, t.CategoryName, imagePath, t.Timestamp)
	} else {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO transactions (id, amount_cents, type, description, category_name, image_path, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Amount.Cents, string(t.Type), t.Description, t.CategoryName, imagePath, t.Timestamp)
	}
	if err != nil {
		return core.Transaction{}, storageErr("insert transaction", err)
	}

	if t.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return core.Transaction{}, storageErr("insert transaction id", err)
		}
		t.ID = id
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"type", string(t.Type),
		"amount_cents", t.Amount.Cents,
		"category", t.CategoryName)

	return t, nil
}

// DeleteTransaction removes t by its primary key.
func (s *Store) DeleteTransaction(ctx context.Context, t core.Transaction) error {
	return s.DeleteTransactionByID(ctx, t.ID)
}

// DeleteTransactionByID removes the row with the given id. Deleting a
// non-existent id is a successful no-op, keeping deletes idempotent under
// retry.
func (s *Store) DeleteTransactionByID(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete transaction", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.DebugContext(ctx, "Delete of absent transaction ignored", "id", id)
	}
	return nil
}

// GetTransaction returns the transaction with the given id, or ErrNotFound.
func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount_cents, type, description, category_name, image_path, timestamp
		 FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, storageErr("get transaction", err)
	}
	return t, nil
}

// ListTransactions returns all transactions, most recent first. Timestamp
// ties resolve by id ascending so the order is deterministic.
func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount_cents, type, description, category_name, image_path, timestamp
		 FROM transactions ORDER BY timestamp DESC, id ASC`)
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	defer rows.Close()

	ts := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr("scan transaction", err)
		}
		ts = append(ts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list transactions", err)
	}
	return ts, nil
}

// SumBalance computes the balance aggregate as a fold over the current
// transaction set. It is never maintained as a running counter, so it
// cannot drift from the stored rows.
func (s *Store) SumBalance(ctx context.Context) (core.Money, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE -amount_cents END), 0)
		 FROM transactions`).Scan(&cents)
	if err != nil {
		return core.Money{}, storageErr("sum balance", err)
	}
	return core.Money{Cents: cents}, nil
}

// InsertCategory upserts c by name: an existing category with the same name
// keeps its id and gets its icon replaced. An empty icon falls back to the
// default glyph.
func (s *Store) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.Icon == "" {
		c.Icon = core.DefaultCategoryIcon
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, icon) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET icon = excluded.icon`,
		c.Name, c.Icon)
	if err != nil {
		return core.Category{}, storageErr("insert category", err)
	}

	// Re-read to pick up the id the upsert kept or assigned
	row := s.db.QueryRowContext(ctx, `SELECT id, name, icon FROM categories WHERE name = ?`, c.Name)
	if err := row.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
		return core.Category{}, storageErr("read category", err)
	}

	slog.InfoContext(ctx, "Category saved", "id", c.ID, "name", c.Name)
	return c, nil
}

// DeleteCategory removes c by id. The "Uncategorized" fallback is never
// deleted; asking to is a silent no-op.
func (s *Store) DeleteCategory(ctx context.Context, c core.Category) error {
	if c.Name == core.DefaultCategoryName {
		slog.WarnContext(ctx, "Refusing to delete fallback category", "name", c.Name)
		return nil
	}
	return s.DeleteCategoryByID(ctx, c.ID)
}

// DeleteCategoryByID removes the category with the given id, unless it is
// the "Uncategorized" fallback. Absent ids are a no-op.
func (s *Store) DeleteCategoryByID(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND name <> ?`, id, core.DefaultCategoryName)
	if err != nil {
		return storageErr("delete category", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.DebugContext(ctx, "Delete of absent or protected category ignored", "id", id)
	}
	return nil
}

// ListCategories returns all categories in insertion order, which is stable
// across reads absent mutation.
func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, icon FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, storageErr("list categories", err)
	}
	defer rows.Close()

	cs := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, storageErr("scan category", err)
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list categories", err)
	}
	return cs, nil
}

// seedDefaultCategories inserts the starter set the first time the
// categories table is seen empty.
func (s *Store) seedDefaultCategories(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return storageErr("count categories", err)
	}
	if n > 0 {
		return nil
	}
	for _, name := range []string{core.DefaultCategoryName, "Food", "Salary"} {
		if _, err := s.InsertCategory(ctx, core.Category{Name: name, Icon: core.DefaultCategoryIcon}); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "Seeded default categories")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		typ       string
		imagePath sql.NullString
	)
	err := row.Scan(&t.ID, &t.Amount.Cents, &typ, &t.Description, &t.CategoryName, &imagePath, &t.Timestamp)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	if imagePath.Valid {
		t.ImagePath = imagePath.String
	}
	return t, nil
}
