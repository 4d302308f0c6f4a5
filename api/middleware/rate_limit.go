package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/farmlink-backend/api/responses"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

// Auth bodies are tiny; anything larger is not worth buffering for the
// contact lookup and gets passed through unread.
const rateLimitBodyLimit = 16 << 10

// RateLimitStore counts hits per key within a window.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
}

// RateLimitPolicy throttles one surface by client IP and by the contact
// number in the JSON body. A zero limit disables that dimension.
type RateLimitPolicy struct {
	Surface      string
	Window       time.Duration
	IPLimit      int
	ContactLimit int
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.ContactLimit > 0)
}

type rateLimitHit struct {
	scope string
	key   string
	limit int
}

// RateLimit rejects requests past the policy's limits with 429 and a
// Retry-After header. Counter failures surface as DEPENDENCY_ERROR.
func RateLimit(policy RateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	surface := strings.ToLower(strings.TrimSpace(policy.Surface))
	if surface == "" {
		surface = "auth"
	}

	return func(next http.Handler) http.Handler {
		if store == nil || !policy.enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var hits []rateLimitHit
			if ip := clientIP(r); policy.IPLimit > 0 && ip != "" {
				hits = append(hits, rateLimitHit{"ip", store.RateLimitKey(surface, "ip", ip), policy.IPLimit})
			}
			if policy.ContactLimit > 0 {
				if contact := peekContact(r); contact != "" {
					hits = append(hits, rateLimitHit{"contact_number", store.RateLimitKey(surface, "contact", digest(contact)), policy.ContactLimit})
				}
			}

			for _, hit := range hits {
				count, err := store.IncrWithTTL(ctx, hit.key, policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if count <= int64(hit.limit) {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"surface":  surface,
						"scope":    hit.scope,
						"attempts": count,
						"limit":    hit.limit,
					}), "rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Round(time.Second)/time.Second)))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// peekContact reads the contact number from a JSON body and restores the
// body for the next handler.
func peekContact(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, rateLimitBodyLimit+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil || len(head) > rateLimitBodyLimit {
		return ""
	}

	var body struct {
		ContactNumber string `json:"contact_number"`
	}
	if json.Unmarshal(head, &body) != nil {
		return ""
	}
	return normalizeContact(body.ContactNumber)
}

// normalizeContact drops spacing and dashes so "077 123-4567" and
// "0771234567" share a counter.
func normalizeContact(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(value))
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// clientIP prefers the first X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
