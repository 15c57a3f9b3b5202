// Package auth implements people, credentials and the session lifecycle:
// register, login, logout, company switching, super-admin impersonation and
// the resolver that turns a session cookie into an Identity.
//
// Session tokens are 32 random bytes encoded base64url without padding. Only
// the sha256 hex digest is stored, so a leaked sessions table cannot be
// replayed. Every session expires a fixed TTL after creation; expiry is
// checked with a strict "expires_at > now" comparison on every lookup.
//
//	identity, err := resolver.Resolve(ctx, token)
//	if errors.Is(err, apperrors.ErrUnauthenticated) {
//		// 401
//	}
package auth
