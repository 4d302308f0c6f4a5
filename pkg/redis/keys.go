package redis

import "strings"

// Every key lives under the fl: namespace so the cache can be shared.
const (
	keyNamespace      = "fl"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	sessionPrefix     = "session"
	lockPrefix        = "lock"
)

// IdempotencyKey returns the key holding a replayable response or a webhook claim.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

// RateLimitKey returns the counter key for one rate limit window.
func (c *Client) RateLimitKey(parts ...string) string {
	return joinKey(append([]string{rateLimitPrefix}, parts...)...)
}

// AccessSessionKey returns the refresh session key for an access token id.
func (c *Client) AccessSessionKey(accessID string) string {
	return joinKey(sessionPrefix, "access", accessID)
}

// LockKey returns the key for a named distributed lock.
func (c *Client) LockKey(name string) string {
	return joinKey(lockPrefix, name)
}

// joinKey prefixes the namespace and drops blank parts.
func joinKey(parts ...string) string {
	out := make([]string, 1, len(parts)+1)
	out[0] = keyNamespace
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ":")
}
