// Package repository содержит реализацию хранилища JSON-коллекций в PostgreSQL.
package repository

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDocumentNotFound возвращается, если документ отсутствует в коллекции.
var (
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentExists возвращается при нарушении уникальности идентификатора или ключевого поля.
	ErrDocumentExists = errors.New("document already exists")
	// ErrVersionMismatch возвращается, если версия документа отличается от ожидаемой.
	ErrVersionMismatch = errors.New("document version mismatch")
)

// Document: JSON-документ коллекции с версией.
type Document struct {
	ID        string
	Data      map[string]any
	Version   int64
	UpdatedAt time.Time
}

// Filter описывает отбор документов по равенству поля.
type Filter struct {
	Field string
	Value string
}

// PostgresRepository предоставляет доступ к коллекциям документов в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// List возвращает документы коллекции, удовлетворяющие всем фильтрам, в порядке создания.
// Значение limit <= 0 снимает ограничение.
func (r *PostgresRepository) List(ctx context.Context, collection string, filters []Filter, limit int) ([]Document, error) {
	var sb strings.Builder
	args := []any{collection}

	sb.WriteString(`SELECT id, doc, version, updated_at FROM resources WHERE collection = $1`)
	for _, f := range filters {
		args = append(args, f.Field, f.Value)
		fmt.Fprintf(&sb, ` AND doc->>$%d = $%d`, len(args)-1, len(args))
	}
	sb.WriteString(` ORDER BY created_at, id`)
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return docs, nil
}

// Get возвращает документ коллекции по идентификатору.
func (r *PostgresRepository) Get(ctx context.Context, collection, id string) (*Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, doc, version, updated_at FROM resources WHERE collection = $1 AND id = $2`,
		collection, id,
	)

	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// Create сохраняет новый документ. Повтор идентификатора или уникального поля даёт ErrDocumentExists.
func (r *PostgresRepository) Create(ctx context.Context, collection, id string, data map[string]any) (*Document, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	var d *Document
	err = r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx,
			`INSERT INTO resources (collection, id, doc) VALUES ($1, $2, $3::jsonb)
			 RETURNING id, doc, version, updated_at`,
			collection, id, string(payload),
		)
		var scanErr error
		d, scanErr = scanDocument(row)
		return scanErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s/%s", ErrDocumentExists, collection, id)
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}

	return d, nil
}

// Patch сливает patch с документом и увеличивает его версию.
// Если expectedVersion > 0, обновление выполняется только при совпадении версии.
func (r *PostgresRepository) Patch(ctx context.Context, collection, id string, patch map[string]any, expectedVersion int64) (*Document, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}

	var d *Document
	err = r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx,
			`UPDATE resources
			 SET doc = doc || $3::jsonb, version = version + 1, updated_at = now()
			 WHERE collection = $1 AND id = $2 AND ($4::bigint = 0 OR version = $4::bigint)
			 RETURNING id, doc, version, updated_at`,
			collection, id, string(payload), expectedVersion,
		)
		var scanErr error
		d, scanErr = scanDocument(row)
		return scanErr
	})
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s/%s", ErrDocumentExists, collection, id)
		}
		return nil, fmt.Errorf("update document: %w", err)
	}

	// Документ не обновлён: либо его нет, либо версия устарела.
	if _, getErr := r.Get(ctx, collection, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrVersionMismatch, collection, id)
}

// Delete удаляет документ коллекции.
func (r *PostgresRepository) Delete(ctx context.Context, collection, id string) error {
	return r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`DELETE FROM resources WHERE collection = $1 AND id = $2`,
			collection, id,
		)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrDocumentNotFound
		}
		return nil
	})
}

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		d   Document
		raw []byte
	)
	if err := row.Scan(&d.ID, &raw, &d.Version, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&d.Data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	return &d, nil
}
