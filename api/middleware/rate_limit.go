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

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// maxRateLimitBody caps how much of a request is buffered to find the email.
const maxRateLimitBody = 64 << 10

// RateLimiterStore counts hits per scope in fixed windows.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitRule throttles requests sharing one key. An empty key skips the rule.
type RateLimitRule struct {
	Name  string
	Limit int
	// Key derives the counter key; body is nil unless ReadsBody is set.
	Key       func(r *http.Request, body []byte) string
	ReadsBody bool
	// Hashed keys are logged and stored as sha256 digests.
	Hashed bool
}

// ByClientIP counts requests per caller address.
func ByClientIP(limit int) RateLimitRule {
	return RateLimitRule{
		Name:  "ip",
		Limit: limit,
		Key:   func(r *http.Request, _ []byte) string { return clientIP(r) },
	}
}

// ByBodyEmail counts requests per normalized "email" field in a JSON body.
func ByBodyEmail(limit int) RateLimitRule {
	return RateLimitRule{
		Name:      "email",
		Limit:     limit,
		ReadsBody: true,
		Hashed:    true,
		Key: func(_ *http.Request, body []byte) string {
			return validators.NormalizeEmail(extractEmail(body))
		},
	}
}

// ByUser counts requests per authenticated account; mount it after Auth.
func ByUser(limit int) RateLimitRule {
	return RateLimitRule{
		Name:  "user",
		Limit: limit,
		Key:   func(r *http.Request, _ []byte) string { return UserIDFromContext(r.Context()) },
	}
}

// RateLimitPolicy groups the rules guarding one route under a shared window.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	rules  []RateLimitRule
}

// NewRateLimitPolicy drops rules with a non-positive limit.
func NewRateLimitPolicy(name string, window time.Duration, rules ...RateLimitRule) RateLimitPolicy {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Limit > 0 && rule.Key != nil {
			active = append(active, rule)
		}
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "default"
	}
	return RateLimitPolicy{name: name, window: window, rules: active}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && len(p.rules) > 0
}

func (p RateLimitPolicy) readsBody() bool {
	for _, rule := range p.rules {
		if rule.ReadsBody {
			return true
		}
	}
	return false
}

// RateLimit rejects requests with RATE_LIMIT once any rule of the policy is
// exhausted for the current window. Store failures surface as DEPENDENCY.
func RateLimit(policy RateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.readsBody() && r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, rule := range policy.rules {
				key := rule.Key(r, body)
				if key == "" {
					continue
				}
				if rule.Hashed {
					key = hashValue(key)
				}
				scope := policy.name + ":" + rule.Name + ":" + key
				allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(rule.Limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if !allowed {
					rejectRateLimited(ctx, logg, w, policy, rule, key, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, rule RateLimitRule, key string, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":   policy.name,
			"rule":     rule.Name,
			"key":      key,
			"attempts": count,
			"limit":    rule.Limit,
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, try again later"))
}

// clientIP trusts the first X-Forwarded-For hop; the API only runs behind
// the load balancer that sets it.
func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return body.Email
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
