package refreshsession

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Store persists refresh sessions. Every Revoke* method only touches rows
// that are still active at now, which is what makes concurrent rotations
// resolve to a single winner.
type Store interface {
	Create(ctx context.Context, session *RefreshSession) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshSession, error)
	FindByID(ctx context.Context, id string) (*RefreshSession, error)
	ListActive(ctx context.Context, userID uint, now time.Time) ([]RefreshSession, error)
	RevokeActive(ctx context.Context, id, reason string, now time.Time) (bool, error)
	RevokeAllActive(ctx context.Context, userID uint, reason string, now time.Time) (int64, error)
	RevokeIDs(ctx context.Context, ids []string, reason string, now time.Time) (int64, error)
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, session *RefreshSession) error {
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *GormStore) first(ctx context.Context, column, value string) (*RefreshSession, error) {
	var session RefreshSession
	err := s.db.WithContext(ctx).Where(column+" = ?", value).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *GormStore) FindByHash(ctx context.Context, tokenHash string) (*RefreshSession, error) {
	return s.first(ctx, "token_hash", tokenHash)
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*RefreshSession, error) {
	return s.first(ctx, "id", id)
}

func (s *GormStore) active(ctx context.Context, now time.Time) *gorm.DB {
	return s.db.WithContext(ctx).Model(&RefreshSession{}).
		Where("revoked_at IS NULL AND expires_at > ?", now.UTC())
}

// ListActive returns the user's active sessions newest first.
func (s *GormStore) ListActive(ctx context.Context, userID uint, now time.Time) ([]RefreshSession, error) {
	var sessions []RefreshSession
	err := s.active(ctx, now).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&sessions).Error
	return sessions, err
}

func revocation(reason string, now time.Time) map[string]any {
	return map[string]any{
		"revoked_at":     now.UTC(),
		"revoked_reason": reason,
	}
}

func (s *GormStore) RevokeActive(ctx context.Context, id, reason string, now time.Time) (bool, error) {
	res := s.active(ctx, now).Where("id = ?", id).Updates(revocation(reason, now))
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) RevokeAllActive(ctx context.Context, userID uint, reason string, now time.Time) (int64, error) {
	res := s.active(ctx, now).Where("user_id = ?", userID).Updates(revocation(reason, now))
	return res.RowsAffected, res.Error
}

func (s *GormStore) RevokeIDs(ctx context.Context, ids []string, reason string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.active(ctx, now).Where("id IN ?", ids).Updates(revocation(reason, now))
	return res.RowsAffected, res.Error
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
