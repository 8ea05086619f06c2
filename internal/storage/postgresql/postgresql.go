// Package postgresql реализует хранилище карты дня на PostgreSQL.
// Обе записи дня лежат в таблице daily_cards с ключом (namespace, user_id, day).
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/tarot-miniapp/internal/dailycache"
	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

// Storage хранилище карты дня в PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New подключается к PostgreSQL. Схема создаётся миграциями.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// Lookup реализует dailycache.Store.
func (s *Storage) Lookup(ctx context.Context, userID int, day string) (*models.DailyCardRecord, error) {
	const op = "storage.postgresql.Lookup"

	rows, err := s.DB.QueryContext(ctx, `
		SELECT namespace, payload FROM daily_cards
		WHERE user_id = $1 AND day = $2::date AND namespace IN ($3, $4)`,
		userID, day, dailycache.NamespaceCard, dailycache.NamespaceInterpretation)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var (
		rec *models.DailyCardRecord
		it  *models.Interpretation
	)
	for rows.Next() {
		var (
			ns      string
			payload []byte
		)
		if err := rows.Scan(&ns, &payload); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		switch ns {
		case dailycache.NamespaceCard:
			rec = &models.DailyCardRecord{}
			if err := json.Unmarshal(payload, rec); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		case dailycache.NamespaceInterpretation:
			it = &models.Interpretation{}
			if err := json.Unmarshal(payload, it); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if rec == nil {
		return nil, nil
	}
	rec.Interpretation = it
	return rec, nil
}

// Create реализует dailycache.Store: вставка без перезаписи существующей записи.
func (s *Storage) Create(ctx context.Context, rec models.DailyCardRecord) (bool, error) {
	const op = "storage.postgresql.Create"

	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO daily_cards (namespace, user_id, day, payload)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (namespace, user_id, day) DO NOTHING`,
		dailycache.NamespaceCard, rec.UserID, rec.Date, payload)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// SaveInterpretation реализует dailycache.Store.
func (s *Storage) SaveInterpretation(ctx context.Context, userID int, day string, it models.Interpretation) error {
	const op = "storage.postgresql.SaveInterpretation"

	var exists bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM daily_cards WHERE namespace = $1 AND user_id = $2 AND day = $3::date)`,
		dailycache.NamespaceCard, userID, day).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, dailycache.ErrRecordMissing)
	}

	payload, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO daily_cards (namespace, user_id, day, payload)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (namespace, user_id, day) DO UPDATE SET payload = EXCLUDED.payload`,
		dailycache.NamespaceInterpretation, userID, day, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, s *Storage) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'daily_cards'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.postgresql.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return errors.New("storage.postgresql.CheckDatabaseReady: table daily_cards missing")
	}
	return nil
}
