package refreshsession

import "github.com/tech-arch1tect/condoaccess/apperror"

var (
	ErrSessionNotFound    = apperror.NotFound("session not found")
	ErrSessionInactive    = apperror.ExpiredOrRevoked("session is expired or revoked")
	ErrInvalidSession     = apperror.ExpiredOrRevoked("invalid or expired refresh token")
	ErrForbidden          = apperror.Forbidden("session belongs to another user")
	ErrInvalidCredentials = apperror.Unauthenticated("invalid email or password")
	ErrMissingToken       = apperror.Validation("refresh token is required")
	ErrInvalidSessionID   = apperror.Validation("session id must be a UUID")
	ErrMissingCredentials = apperror.Validation("email and password are required")
	// errRotationLost marks a rotation whose old session was revoked by a
	// concurrent request between lookup and update.
	errRotationLost = apperror.ExpiredOrRevoked("session was rotated concurrently")
)
