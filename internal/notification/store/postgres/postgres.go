package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"govdash/internal/notification/models"
	"govdash/internal/notification/store"
	"govdash/pkg/domain"
	"govdash/pkg/platform/sentinel"
	txcontext "govdash/pkg/platform/tx"
)

// PostgresStore persists notifications and their per-channel delivery logs.
type PostgresStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresStore)(nil)

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) q(ctx context.Context) txcontext.Executor {
	return txcontext.Use(ctx, s.db)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Channels are read back through to_json, as with inspection issues.
const notificationColumns = `id, recipient_id, type, title, message, shop_id, to_json(channels), created_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n             models.Notification
		id, recipient uuid.UUID
		shopID        uuid.NullUUID
		typ           string
		channels      []byte
	)
	if err := row.Scan(&id, &recipient, &typ, &n.Title, &n.Message, &shopID, &channels, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ID = domain.NotificationID(id)
	n.RecipientID = domain.ActorID(recipient)
	n.Type = models.Type(typ)
	if shopID.Valid {
		v := domain.ShopID(shopID.UUID)
		n.ShopID = &v
	}
	if err := json.Unmarshal(channels, &n.Channels); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return &n, nil
}

func channelArray(channels []models.Channel) any {
	raw := make([]string, len(channels))
	for i, c := range channels {
		raw[i] = string(c)
	}
	return pq.Array(raw)
}

func (s *PostgresStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	var shopID uuid.NullUUID
	if n.ShopID != nil {
		shopID = uuid.NullUUID{UUID: uuid.UUID(*n.ShopID), Valid: true}
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, shop_id, channels, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		uuid.UUID(n.ID), uuid.UUID(n.RecipientID), string(n.Type), n.Title, n.Message,
		shopID, channelArray(n.Channels), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindNotification(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, uuid.UUID(id))
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, recipient domain.ActorID, limit int) ([]*models.Notification, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2`, uuid.UUID(recipient), limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const logColumns = `notification_id, channel, status, attempts, last_error, updated_at`

func scanLog(row rowScanner) (*models.Log, error) {
	var (
		l       models.Log
		id      uuid.UUID
		channel string
		status  string
	)
	if err := row.Scan(&id, &channel, &status, &l.Attempts, &l.LastError, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.NotificationID = domain.NotificationID(id)
	l.Channel = models.Channel(channel)
	l.Status = models.DeliveryStatus(status)
	return &l, nil
}

func (s *PostgresStore) GetLog(ctx context.Context, id domain.NotificationID, channel models.Channel) (*models.Log, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+logColumns+` FROM notification_logs
		WHERE notification_id = $1 AND channel = $2`, uuid.UUID(id), string(channel))
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification log %s/%s: %w", id, channel, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification log: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) ClaimLog(ctx context.Context, id domain.NotificationID, channel models.Channel, now, staleBefore time.Time) (*models.Log, bool, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO notification_logs (`+logColumns+`)
		VALUES ($1, $2, $3, 0, '', $4)
		ON CONFLICT (notification_id, channel) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		WHERE notification_logs.status = $5
			OR (notification_logs.status = $3 AND notification_logs.updated_at < $6)
		RETURNING `+logColumns,
		uuid.UUID(id), string(channel), string(models.DeliveryInFlight), now,
		string(models.DeliveryFailed), staleBefore,
	)
	l, err := scanLog(row)
	if err == nil {
		return l, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("claim notification log: %w", err)
	}
	// Sent, or claimed by a live dispatch.
	l, err = s.GetLog(ctx, id, channel)
	if err != nil {
		return nil, false, err
	}
	return l, false, nil
}

func (s *PostgresStore) UpsertLog(ctx context.Context, l *models.Log) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO notification_logs (`+logColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (notification_id, channel) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(l.NotificationID), string(l.Channel), string(l.Status), l.Attempts, l.LastError, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert notification log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, id domain.NotificationID) ([]*models.Log, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+logColumns+` FROM notification_logs
		WHERE notification_id = $1 ORDER BY channel`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("list notification logs: %w", err)
	}
	defer rows.Close()

	var out []*models.Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
