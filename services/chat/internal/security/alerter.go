package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultAlertPrefix = "wisechat:alerts"

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// AlertResult reports how close one event stream is to its threshold.
type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// AuditAlerter counts failed security events per client IP in Redis and
// flags bursts. A nil alerter observes nothing.
type AuditAlerter struct {
	redisClient *redis.Client
	prefix      string
	now         func() time.Time
}

// NewAuditAlerter returns nil when addr is empty so callers can keep it optional.
func NewAuditAlerter(addr, password, prefix string) *AuditAlerter {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	return NewAuditAlerterWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), prefix)
}

// NewAuditAlerterWithClient shares an existing Redis client.
func NewAuditAlerterWithClient(client *redis.Client, prefix string) *AuditAlerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultAlertPrefix
	}
	return &AuditAlerter{redisClient: client, prefix: prefix, now: time.Now}
}

// Observe records one event and reports whether its burst threshold is reached.
// Events without a rule are ignored.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	result := AlertResult{}
	if a == nil || a.redisClient == nil {
		return result, nil
	}
	threshold, window, ok := alertRule(event, outcome)
	if !ok {
		return result, nil
	}
	windowMs := window.Milliseconds()
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(ip), slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.redisClient, []string{key}, windowMs).Int64()
	if err != nil {
		return result, err
	}
	result.Count = count
	result.Threshold = threshold
	result.Window = window
	result.Triggered = count >= threshold
	return result, nil
}

// Close releases the Redis connection pool.
func (a *AuditAlerter) Close() error {
	if a == nil || a.redisClient == nil {
		return nil
	}
	return a.redisClient.Close()
}

func alertRule(event, outcome string) (threshold int64, window time.Duration, ok bool) {
	if strings.TrimSpace(outcome) != "failure" {
		return 0, 0, false
	}
	switch strings.TrimSpace(event) {
	case "impersonation":
		return 1, time.Hour, true
	case "rate_limited":
		return 20, time.Minute, true
	case "login", "signup":
		return 10, 5 * time.Minute, true
	case "role_denied":
		return 15, 5 * time.Minute, true
	case "token_rejected":
		return 25, 5 * time.Minute, true
	default:
		return 0, 0, false
	}
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(in)
}
