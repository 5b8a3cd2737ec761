// Package postgres implements storage.Store on PostgreSQL via the pgx
// stdlib driver. This is the production backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"repoctl/internal/dbx"
	"repoctl/internal/records"
	"repoctl/internal/storage"
	"repoctl/internal/storage/migrations"
)

type Store struct {
	db *sql.DB
}

// Open connects to the database named by dsn and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Postgres)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "postgres")
}

// DB exposes the underlying handle for transactional service operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetRecord(ctx context.Context, model records.DataModel, pid string) (*storage.RecordRow, error) {
	table, err := storage.RecordTable(model, records.TypeRecord)
	if err != nil {
		return nil, err
	}

	row := &storage.RecordRow{}
	query := fmt.Sprintf(`SELECT pid, json, version, is_deleted FROM %s WHERE pid = $1`, table)
	err = s.db.QueryRowContext(ctx, query, pid).
		Scan(&row.PID, &row.JSON, &row.Version, &row.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("selecting record: %w", err)
	}
	return row, nil
}

func (s *Store) GetDraft(ctx context.Context, model records.DataModel, pid string) (*storage.DraftRow, error) {
	table, err := storage.RecordTable(model, records.TypeDraft)
	if err != nil {
		return nil, err
	}

	row := &storage.DraftRow{}
	query := fmt.Sprintf(`SELECT pid, json FROM %s WHERE pid = $1`, table)
	err = s.db.QueryRowContext(ctx, query, pid).Scan(&row.PID, &row.JSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("selecting draft: %w", err)
	}
	return row, nil
}

func (s *Store) InsertDraft(ctx context.Context, model records.DataModel, pid string, doc []byte) error {
	table, err := storage.RecordTable(model, records.TypeDraft)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (pid, json) VALUES ($1, $2)
		ON CONFLICT (pid) DO NOTHING`, table)
	if _, err := s.db.ExecContext(ctx, query, pid, doc); err != nil {
		return fmt.Errorf("inserting draft: %w", err)
	}
	return nil
}

func (s *Store) UpdateDraft(ctx context.Context, model records.DataModel, pid string, doc []byte) error {
	table, err := storage.RecordTable(model, records.TypeDraft)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET json = $1, updated = now() WHERE pid = $2`, table)
	res, err := s.db.ExecContext(ctx, query, doc, pid)
	if err != nil {
		return fmt.Errorf("updating draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNoRows
	}
	return nil
}

func (s *Store) PromoteDraft(ctx context.Context, model records.DataModel, pid string) error {
	recordsTable, err := storage.RecordTable(model, records.TypeRecord)
	if err != nil {
		return err
	}
	draftsTable, err := storage.RecordTable(model, records.TypeDraft)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var doc []byte
		query := fmt.Sprintf(`SELECT json FROM %s WHERE pid = $1 FOR UPDATE`, draftsTable)
		if err := tx.QueryRowContext(ctx, query, pid).Scan(&doc); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNoRows
			}
			return fmt.Errorf("selecting draft: %w", err)
		}

		upsert := fmt.Sprintf(`INSERT INTO %s (pid, json) VALUES ($1, $2)
			ON CONFLICT (pid) DO UPDATE SET
				json = EXCLUDED.json,
				version = %s.version + 1,
				updated = now()`, recordsTable, recordsTable)
		if _, err := tx.ExecContext(ctx, upsert, pid, doc); err != nil {
			return fmt.Errorf("publishing record: %w", err)
		}

		drop := fmt.Sprintf(`DELETE FROM %s WHERE pid = $1`, draftsTable)
		if _, err := tx.ExecContext(ctx, drop, pid); err != nil {
			return fmt.Errorf("discarding draft: %w", err)
		}
		return nil
	})
}

func (s *Store) SoftDeleteRecord(ctx context.Context, model records.DataModel, pid string) error {
	table, err := storage.RecordTable(model, records.TypeRecord)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET is_deleted = TRUE, updated = now() WHERE pid = $1 AND is_deleted = FALSE`, table)
	res, err := s.db.ExecContext(ctx, query, pid)
	if err != nil {
		return fmt.Errorf("soft-deleting record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNoRows
	}
	return nil
}

func (s *Store) DeleteDraft(ctx context.Context, model records.DataModel, pid string) error {
	table, err := storage.RecordTable(model, records.TypeDraft)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE pid = $1`, table)
	res, err := s.db.ExecContext(ctx, query, pid)
	if err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNoRows
	}
	return nil
}

func (s *Store) UpdateRecordJSON(ctx context.Context, model records.DataModel, pid string, doc []byte) error {
	table, err := storage.RecordTable(model, records.TypeRecord)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET json = $1, updated = now() WHERE pid = $2`, table)
	res, err := s.db.ExecContext(ctx, query, doc, pid)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNoRows
	}
	return nil
}

func (s *Store) CountRecords(ctx context.Context, model records.DataModel, typ records.RecordType) (int, error) {
	table, err := storage.RecordTable(model, typ)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
	if typ == records.TypeRecord {
		query += ` WHERE is_deleted = FALSE`
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (s *Store) ListRecords(ctx context.Context, model records.DataModel, typ records.RecordType, fn func(pid string, doc []byte) error) error {
	table, err := storage.RecordTable(model, typ)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT pid, json FROM %s`, table)
	if typ == records.TypeRecord {
		query += ` WHERE is_deleted = FALSE`
	}
	query += ` ORDER BY created`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("selecting records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pid string
		var doc []byte
		if err := rows.Scan(&pid, &doc); err != nil {
			return err
		}
		if err := fn(pid, doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) RoleExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE name = $1`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("selecting role: %w", err)
	}
	return n > 0, nil
}

func (s *Store) CreateRole(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO roles (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("creating role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("selecting roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) ListUsers(ctx context.Context) ([]storage.UserRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, password_hash, active, confirmed_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("selecting users: %w", err)
	}
	defer rows.Close()

	var users []storage.UserRow
	for rows.Next() {
		var u storage.UserRow
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active, &u.ConfirmedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, email string, passwordHash []byte, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, active) VALUES ($1, $2, $3)`,
		email, passwordHash, active)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.UserRow, error) {
	u := &storage.UserRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, active, confirmed_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active, &u.ConfirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	return u, nil
}

func (s *Store) ListFiles(ctx context.Context, pid string) ([]storage.FileRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pid, filename, object_key, size, checksum FROM record_files WHERE pid = $1 ORDER BY filename`, pid)
	if err != nil {
		return nil, fmt.Errorf("selecting files: %w", err)
	}
	defer rows.Close()

	var files []storage.FileRow
	for rows.Next() {
		var f storage.FileRow
		if err := rows.Scan(&f.PID, &f.Filename, &f.ObjectKey, &f.Size, &f.Checksum); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) GetFile(ctx context.Context, pid, filename string) (*storage.FileRow, error) {
	f := &storage.FileRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT pid, filename, object_key, size, checksum FROM record_files WHERE pid = $1 AND filename = $2`,
		pid, filename).
		Scan(&f.PID, &f.Filename, &f.ObjectKey, &f.Size, &f.Checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("selecting file: %w", err)
	}
	return f, nil
}

func (s *Store) InsertFile(ctx context.Context, row *storage.FileRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO record_files (pid, filename, object_key, size, checksum) VALUES ($1, $2, $3, $4, $5)`,
		row.PID, row.Filename, row.ObjectKey, row.Size, row.Checksum)
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, pid, filename string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM record_files WHERE pid = $1 AND filename = $2`, pid, filename)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNoRows
	}
	return nil
}
