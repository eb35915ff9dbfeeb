package refreshsession

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/jwt"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (Principal, error)
	LookupPrincipal(ctx context.Context, userID uint) (Principal, error)
}

type TokenIssuer interface {
	IssueAccessToken(subject jwt.Subject, expiry string) (string, time.Time, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service owns the refresh session lifecycle and the per-user active
// session cap.
type Service struct {
	store   Store
	auth    Authenticator
	tokens  TokenIssuer
	audit   AuditRecorder
	config  *config.Config
	logger  *logging.Service
	metrics *instrumentation.Metrics
	now     func() time.Time
}

func NewService(store Store, auth Authenticator, tokens TokenIssuer, recorder AuditRecorder, cfg *config.Config, logger *logging.Service) *Service {
	logger.Info("initializing refresh session service",
		zap.Duration("refresh_ttl", cfg.Session.RefreshTTLDuration()),
		zap.Int("max_active_sessions", cfg.Session.MaxActiveSessions()),
		zap.Int("token_bytes", cfg.Session.TokenLength()))

	return &Service{
		store:  store,
		auth:   auth,
		tokens: tokens,
		audit:  recorder,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) SetMetrics(m *instrumentation.Metrics) {
	s.metrics = m
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
}

func (s *Service) generateSecureToken() (string, error) {
	buf := make([]byte, s.config.Session.TokenLength())
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the one-way mapping from a presented secret to the stored
// token hash.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Login authenticates credentials and issues a session. Failed attempts are
// audited with whatever the caller supplied.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*Tokens, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.record(ctx, audit.Entry{
			EventType: audit.EventLogin,
			UserEmail: email,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   "missing credentials",
		})
		return nil, ErrMissingCredentials
	}

	principal, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		s.metrics.SessionOperation("login", false)
		details := "invalid credentials"
		if apperror.KindOf(err) == apperror.KindStore {
			details = "authentication backend error"
		}
		s.record(ctx, audit.Entry{
			EventType: audit.EventLogin,
			UserEmail: email,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   details,
		})
		s.logger.Warn("login failed", zap.String("ip_address", client.IPAddress), zap.Error(err))
		if apperror.KindOf(err) == apperror.KindStore {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	return s.IssueSession(ctx, principal, client)
}

// IssueSession creates a session for an already authenticated principal and
// then enforces the session cap in the same transaction.
func (s *Service) IssueSession(ctx context.Context, principal Principal, client ClientInfo) (*Tokens, error) {
	tokens, err := s.issue(ctx, principal, client, nil)
	if err != nil {
		s.metrics.SessionOperation("issue", false)
		s.record(ctx, audit.Entry{
			EventType: audit.EventLogin,
			UserID:    principal.UserID,
			UserEmail: principal.Email,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   "session issuance failed",
		})
		return nil, err
	}

	s.metrics.SessionOperation("issue", true)
	s.record(ctx, audit.Entry{
		EventType: audit.EventLogin,
		Success:   true,
		UserID:    principal.UserID,
		UserEmail: principal.Email,
		SessionID: tokens.Session.ID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Details:   evictionDetails(tokens.Evicted),
	})
	s.logger.Info("refresh session issued",
		zap.Uint("user_id", principal.UserID),
		zap.String("session_id", tokens.Session.ID),
		zap.Int64("evicted", tokens.Evicted))
	return tokens, nil
}

func evictionDetails(n int64) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("evicted %d oldest session(s)", n)
}

// issue mints the secret and access token first so that nothing is written
// unless both exist. When previous is set, its revocation, the insert and
// the cap enforcement commit together.
func (s *Service) issue(ctx context.Context, principal Principal, client ClientInfo, previous *RefreshSession) (*Tokens, error) {
	secret, err := s.generateSecureToken()
	if err != nil {
		s.logger.Error("failed to generate refresh secret", zap.Error(err))
		return nil, err
	}

	now := s.now().UTC()
	session := RefreshSession{
		ID:        uuid.NewString(),
		UserID:    principal.UserID,
		TokenHash: HashToken(secret),
		IPAddress: client.IPAddress,
		UserAgent: audit.Truncate(client.UserAgent, 512),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.Session.RefreshTTLDuration()),
	}

	accessToken, accessExpiry, err := s.tokens.IssueAccessToken(jwt.Subject{
		UserID:    principal.UserID,
		Email:     principal.Email,
		Role:      principal.Role,
		SessionID: session.ID,
	}, s.config.Session.AccessTTL)
	if err != nil {
		s.logger.Error("failed to issue access token", zap.Uint("user_id", principal.UserID), zap.Error(err))
		return nil, err
	}

	var evicted int64
	err = s.store.WithTx(ctx, func(tx Store) error {
		if previous != nil {
			won, err := tx.RevokeActive(ctx, previous.ID, ReasonRotated, now)
			if err != nil {
				return err
			}
			if !won {
				return errRotationLost
			}
		}
		if err := tx.Create(ctx, &session); err != nil {
			return err
		}
		evicted, err = s.enforceCap(ctx, tx, principal.UserID, session.ID, now)
		return err
	})
	if err != nil {
		if errors.Is(err, errRotationLost) {
			return nil, err
		}
		s.logger.Error("failed to persist refresh session", zap.Uint("user_id", principal.UserID), zap.Error(err))
		return nil, apperror.Store("persist refresh session", err)
	}

	s.metrics.SessionsEvicted(evicted)
	return &Tokens{
		RefreshToken:         secret,
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessExpiry,
		Session:              session,
		Evicted:              evicted,
	}, nil
}

// enforceCap keeps the newest MaxActiveSessions sessions and revokes the
// rest in one statement. A non-empty keepID is always kept and counts
// toward the cap, so a session issued in the same instant as older ones is
// never the one evicted.
func (s *Service) enforceCap(ctx context.Context, store Store, userID uint, keepID string, now time.Time) (int64, error) {
	limit := s.config.Session.MaxActiveSessions()

	active, err := store.ListActive(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if len(active) <= limit {
		return 0, nil
	}

	ranked := make([]RefreshSession, 0, len(active))
	keep := limit
	for _, sess := range active {
		if keepID != "" && sess.ID == keepID {
			keep--
			continue
		}
		ranked = append(ranked, sess)
	}
	keep = max(keep, 0)
	if len(ranked) <= keep {
		return 0, nil
	}

	ids := make([]string, 0, len(ranked)-keep)
	for _, sess := range ranked[keep:] {
		ids = append(ids, sess.ID)
	}
	return store.RevokeIDs(ctx, ids, ReasonEvicted, now)
}

// EnforceSessionCap applies the cap outside of issuance.
func (s *Service) EnforceSessionCap(ctx context.Context, userID uint) (int64, error) {
	now := s.now().UTC()
	var evicted int64
	err := s.store.WithTx(ctx, func(tx Store) error {
		var err error
		evicted, err = s.enforceCap(ctx, tx, userID, "", now)
		return err
	})
	if err != nil {
		s.logger.Error("failed to enforce session cap", zap.Uint("user_id", userID), zap.Error(err))
		return 0, apperror.Store("enforce session cap", err)
	}
	s.metrics.SessionsEvicted(evicted)
	return evicted, nil
}

// RotateSession exchanges a presented refresh secret for a new session. The
// presented secret is unusable afterwards whether or not the caller ever
// receives the new one.
func (s *Service) RotateSession(ctx context.Context, presentedSecret string, client ClientInfo) (*Tokens, error) {
	presentedSecret = strings.TrimSpace(presentedSecret)
	if presentedSecret == "" {
		s.refreshFailed(ctx, nil, client, "missing refresh token")
		return nil, ErrMissingToken
	}

	now := s.now().UTC()
	current, err := s.store.FindByHash(ctx, HashToken(presentedSecret))
	switch {
	case errors.Is(err, ErrSessionNotFound):
		s.refreshFailed(ctx, nil, client, "unknown refresh token")
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, ErrSessionNotFound)
	case err != nil:
		s.logger.Error("failed to look up refresh session", zap.Error(err))
		s.refreshFailed(ctx, nil, client, "session lookup failed")
		return nil, apperror.Store("look up refresh session", err)
	case !current.IsActive(now):
		reason := "refresh token expired"
		if current.RevokedAt != nil {
			reason = "refresh token revoked"
		}
		s.refreshFailed(ctx, current, client, reason)
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, ErrSessionInactive)
	}

	principal, err := s.auth.LookupPrincipal(ctx, current.UserID)
	if err != nil {
		s.refreshFailed(ctx, current, client, "user no longer eligible")
		if apperror.KindOf(err) == apperror.KindStore {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	tokens, err := s.issue(ctx, principal, client, current)
	if err != nil {
		if errors.Is(err, errRotationLost) {
			s.logger.Warn("refresh session rotated concurrently", zap.String("session_id", current.ID))
			s.refreshFailed(ctx, current, client, "refresh token already rotated")
			return nil, fmt.Errorf("%w: %w", ErrInvalidSession, ErrSessionInactive)
		}
		s.refreshFailed(ctx, current, client, "rotation failed")
		return nil, err
	}

	s.metrics.SessionOperation("rotate", true)
	s.record(ctx, audit.Entry{
		EventType: audit.EventRefresh,
		Success:   true,
		UserID:    principal.UserID,
		UserEmail: principal.Email,
		SessionID: tokens.Session.ID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Details:   "rotated from " + current.ID,
	})
	return tokens, nil
}

func (s *Service) refreshFailed(ctx context.Context, session *RefreshSession, client ClientInfo, details string) {
	s.metrics.SessionOperation("rotate", false)
	entry := audit.Entry{
		EventType: audit.EventRefresh,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Details:   details,
	}
	if session != nil {
		entry.UserID = session.UserID
		entry.SessionID = session.ID
	}
	s.record(ctx, entry)
}

// Logout revokes the session identified by its secret. Logging out of an
// already inactive session succeeds with OutcomeInactive.
func (s *Service) Logout(ctx context.Context, presentedSecret string, client ClientInfo) (RevokeOutcome, error) {
	presentedSecret = strings.TrimSpace(presentedSecret)
	if presentedSecret == "" {
		return "", ErrMissingToken
	}

	session, err := s.store.FindByHash(ctx, HashToken(presentedSecret))
	if errors.Is(err, ErrSessionNotFound) {
		s.record(ctx, audit.Entry{
			EventType: audit.EventLogout,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   "unknown refresh token",
		})
		return "", fmt.Errorf("%w: %w", ErrInvalidSession, ErrSessionNotFound)
	}
	if err != nil {
		s.logger.Error("failed to look up refresh session", zap.Error(err))
		return "", apperror.Store("look up refresh session", err)
	}

	return s.revoke(ctx, session, audit.EventLogout, ReasonLogout, client)
}

// RevokeSession revokes sessionID on behalf of ownerUserID. Sessions owned by
// anyone else are ErrForbidden.
func (s *Service) RevokeSession(ctx context.Context, sessionID string, ownerUserID uint, client ClientInfo) (RevokeOutcome, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", ErrInvalidSessionID
	}

	session, err := s.store.FindByID(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		s.record(ctx, audit.Entry{
			EventType: audit.EventRevokeSession,
			UserID:    ownerUserID,
			SessionID: sessionID,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   "session not found",
		})
		return "", ErrSessionNotFound
	}
	if err != nil {
		s.logger.Error("failed to look up refresh session", zap.String("session_id", sessionID), zap.Error(err))
		return "", apperror.Store("look up refresh session", err)
	}

	if session.UserID != ownerUserID {
		s.metrics.SessionOperation("revoke", false)
		s.record(ctx, audit.Entry{
			EventType: audit.EventRevokeSession,
			UserID:    ownerUserID,
			SessionID: sessionID,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   "forbidden: session owned by another user",
		})
		s.logger.Warn("attempt to revoke foreign session",
			zap.Uint("caller_user_id", ownerUserID),
			zap.String("session_id", sessionID))
		return "", ErrForbidden
	}

	return s.revoke(ctx, session, audit.EventRevokeSession, ReasonRevoked, client)
}

func (s *Service) revoke(ctx context.Context, session *RefreshSession, eventType, reason string, client ClientInfo) (RevokeOutcome, error) {
	changed, err := s.store.RevokeActive(ctx, session.ID, reason, s.now().UTC())
	if err != nil {
		s.metrics.SessionOperation(eventType, false)
		s.record(ctx, audit.Entry{
			EventType: eventType,
			UserID:    session.UserID,
			SessionID: session.ID,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   "revocation failed",
		})
		s.logger.Error("failed to revoke refresh session", zap.String("session_id", session.ID), zap.Error(err))
		return "", apperror.Store("revoke refresh session", err)
	}

	outcome := OutcomeRevoked
	if !changed {
		outcome = OutcomeInactive
	}

	s.metrics.SessionOperation(eventType, true)
	s.record(ctx, audit.Entry{
		EventType: eventType,
		Success:   true,
		UserID:    session.UserID,
		SessionID: session.ID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Details:   string(outcome),
	})
	return outcome, nil
}

// RevokeAllSessions revokes every active session of userID. Zero is a valid
// count.
func (s *Service) RevokeAllSessions(ctx context.Context, userID uint, client ClientInfo) (int64, error) {
	count, err := s.store.RevokeAllActive(ctx, userID, ReasonLogoutAll, s.now().UTC())
	if err != nil {
		s.metrics.SessionOperation("logout_all", false)
		s.record(ctx, audit.Entry{
			EventType: audit.EventLogoutAll,
			UserID:    userID,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   "revocation failed",
		})
		s.logger.Error("failed to revoke all sessions", zap.Uint("user_id", userID), zap.Error(err))
		return 0, apperror.Store("revoke all sessions", err)
	}

	s.metrics.SessionOperation("logout_all", true)
	s.record(ctx, audit.Entry{
		EventType: audit.EventLogoutAll,
		Success:   true,
		UserID:    userID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Details:   fmt.Sprintf("revoked=%d", count),
	})
	s.logger.Info("all sessions revoked", zap.Uint("user_id", userID), zap.Int64("count", count))
	return count, nil
}

// ListActiveSessions returns the user's active sessions newest first.
// currentSessionID marks the caller's own session.
func (s *Service) ListActiveSessions(ctx context.Context, userID uint, currentSessionID string, client ClientInfo) ([]SessionView, error) {
	sessions, err := s.store.ListActive(ctx, userID, s.now().UTC())
	if err != nil {
		s.record(ctx, audit.Entry{
			EventType: audit.EventListSessions,
			UserID:    userID,
			SessionID: currentSessionID,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Details:   "listing failed",
		})
		s.logger.Error("failed to list sessions", zap.Uint("user_id", userID), zap.Error(err))
		return nil, apperror.Store("list sessions", err)
	}

	views := make([]SessionView, len(sessions))
	for i, sess := range sessions {
		views[i] = SessionView{
			ID:        sess.ID,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			IPAddress: sess.IPAddress,
			Device:    DeviceLabel(sess.UserAgent),
			Current:   currentSessionID != "" && sess.ID == currentSessionID,
		}
	}

	s.record(ctx, audit.Entry{
		EventType: audit.EventListSessions,
		Success:   true,
		UserID:    userID,
		SessionID: currentSessionID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Details:   fmt.Sprintf("active=%d", len(views)),
	})
	return views, nil
}
