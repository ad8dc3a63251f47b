package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/concordia-platform/triage/internal/model"
)

// Key layout. Everything lives under one prefix so a shared Redis can host
// other platform services.
const (
	keyPolicy          = "triage:policy:"      // + name → policy JSON
	keyPolicyExecs     = "triage:policy:execs" // hash: name → counter
	keyPolicyLastExec  = "triage:policy:last"  // hash: name → RFC3339
	keyRules           = "triage:rules"        // hash: key → rule JSON
	keyRuleInvocations = "triage:rules:invocs" // hash: key → counter
	keyAlert           = "triage:alert:"       // + id → alert JSON
	keyQuarantine      = "triage:quarantine:"  // + id → event JSON
	keyIncident        = "triage:incident:"    // + id → incident JSON
	keyTrust           = "triage:trust:"       // + subject → record JSON
	keyHistory         = "triage:history:"     // + subject → list of event JSON
	keyReaction        = "triage:reaction:"    // + id → reaction JSON
)

// transitionScript performs the incident status CAS server-side so two
// concurrent transitions on the same incident resolve to exactly one winner.
// ARGV[1] = target status, ARGV[2] = updated_at, ARGV[3..] = allowed from.
var transitionScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return redis.error_reply('TRIAGE_NOT_FOUND')
end
local inc = cjson.decode(raw)
for i = 3, #ARGV do
  if inc['status'] == ARGV[i] then
    inc['status'] = ARGV[1]
    inc['updated_at'] = ARGV[2]
    local out = cjson.encode(inc)
    redis.call('SET', KEYS[1], out)
    return out
  end
end
return redis.error_reply('TRIAGE_INVALID_TRANSITION')
`)

// Redis is the production backend. Every operation runs under the
// configured timeout; failures map to model.ErrStoreUnavailable.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
}

// RedisOptions configures the Redis backend connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// NewRedis connects a Redis backend. The connection is verified lazily;
// the first failing operation reports model.ErrStoreUnavailable.
func NewRedis(opts RedisOptions) *Redis {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Redis{client: client, timeout: opts.Timeout}
}

// Stores returns the table interfaces, all backed by r.
func (r *Redis) Stores() Stores {
	return Stores{
		Policies:   r,
		Rules:      r,
		Alerts:     r,
		Quarantine: r,
		Incidents:  r,
		Trust:      r,
		History:    r,
		Reactions:  r,
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrStoreUnavailable, op, err)
}

func (r *Redis) ActivePolicy(ctx context.Context, name string) (model.Policy, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	raw, err := r.client.Get(ctx, keyPolicy+name).Result()
	if err == redis.Nil {
		return model.Policy{}, model.ErrPolicyNotFound
	}
	if err != nil {
		return model.Policy{}, storeErr("get policy", err)
	}

	var p model.Policy
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.Policy{}, storeErr("decode policy", err)
	}
	if !p.Active {
		return model.Policy{}, model.ErrPolicyNotFound
	}

	if n, err := r.client.HGet(ctx, keyPolicyExecs, name).Int64(); err == nil {
		p.ExecutionCount = n
	}
	if s, err := r.client.HGet(ctx, keyPolicyLastExec, name).Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, s); perr == nil {
			p.LastExecutedAt = &t
		}
	}
	return p, nil
}

func (r *Redis) PutPolicy(ctx context.Context, p model.Policy) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	raw, err := json.Marshal(p)
	if err != nil {
		return storeErr("encode policy", err)
	}
	if err := r.client.Set(ctx, keyPolicy+p.Name, raw, 0).Err(); err != nil {
		return storeErr("put policy", err)
	}
	return nil
}

func (r *Redis) RecordExecution(ctx context.Context, name string, at time.Time) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, keyPolicyExecs, name, 1)
	pipe.HSet(ctx, keyPolicyLastExec, name, at.UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("record execution", err)
	}
	return nil
}

func (r *Redis) ActiveRules(ctx context.Context) ([]model.Rule, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	raw, err := r.client.HGetAll(ctx, keyRules).Result()
	if err != nil {
		return nil, storeErr("get rules", err)
	}
	counters, err := r.client.HGetAll(ctx, keyRuleInvocations).Result()
	if err != nil {
		return nil, storeErr("get rule counters", err)
	}

	out := make([]model.Rule, 0, len(raw))
	for key, blob := range raw {
		var rule model.Rule
		if err := json.Unmarshal([]byte(blob), &rule); err != nil {
			return nil, storeErr("decode rule", err)
		}
		if !rule.Active {
			continue
		}
		if c, ok := counters[key]; ok {
			fmt.Sscanf(c, "%d", &rule.InvocationCount)
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *Redis) PutRule(ctx context.Context, rule model.Rule) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	raw, err := json.Marshal(rule)
	if err != nil {
		return storeErr("encode rule", err)
	}
	if err := r.client.HSet(ctx, keyRules, rule.Key, raw).Err(); err != nil {
		return storeErr("put rule", err)
	}
	return nil
}

func (r *Redis) RecordInvocation(ctx context.Context, key string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.client.HIncrBy(ctx, keyRuleInvocations, key, 1).Err(); err != nil {
		return storeErr("record invocation", err)
	}
	return nil
}

func (r *Redis) PutAlert(ctx context.Context, a model.Alert) error {
	return r.putJSON(ctx, keyAlert+a.ID, a, "put alert")
}

func (r *Redis) GetAlert(ctx context.Context, id string) (model.Alert, bool, error) {
	var a model.Alert
	ok, err := r.getJSON(ctx, keyAlert+id, &a, "get alert")
	return a, ok, err
}

func (r *Redis) PutQuarantine(ctx context.Context, q model.QuarantineEvent) error {
	return r.putJSON(ctx, keyQuarantine+q.ID, q, "put quarantine")
}

func (r *Redis) CreateIncident(ctx context.Context, inc model.Incident) error {
	return r.putJSON(ctx, keyIncident+inc.ID, inc, "create incident")
}

func (r *Redis) GetIncident(ctx context.Context, id string) (model.Incident, bool, error) {
	var inc model.Incident
	ok, err := r.getJSON(ctx, keyIncident+id, &inc, "get incident")
	return inc, ok, err
}

func (r *Redis) TransitionIncident(ctx context.Context, id string, allowedFrom []model.IncidentStatus, to model.IncidentStatus, at time.Time) (model.Incident, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	args := []any{string(to), at.UTC().Format(time.RFC3339Nano)}
	for _, from := range allowedFrom {
		args = append(args, string(from))
	}

	raw, err := transitionScript.Run(ctx, r.client, []string{keyIncident + id}, args...).Text()
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "TRIAGE_INVALID_TRANSITION"):
			return model.Incident{}, model.ErrInvalidTransition
		case strings.Contains(msg, "TRIAGE_NOT_FOUND"):
			return model.Incident{}, model.Validationf("unknown incident %q", id)
		default:
			return model.Incident{}, storeErr("transition incident", err)
		}
	}

	var inc model.Incident
	if err := json.Unmarshal([]byte(raw), &inc); err != nil {
		return model.Incident{}, storeErr("decode incident", err)
	}
	return inc, nil
}

func (r *Redis) UpsertTrust(ctx context.Context, rec model.TrustRecord) error {
	return r.putJSON(ctx, keyTrust+rec.Subject, rec, "upsert trust")
}

func (r *Redis) GetTrust(ctx context.Context, subject string) (model.TrustRecord, bool, error) {
	var rec model.TrustRecord
	ok, err := r.getJSON(ctx, keyTrust+subject, &rec, "get trust")
	return rec, ok, err
}

func (r *Redis) RecentEvents(ctx context.Context, subject string, limit int) ([]model.TransactionEvent, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if limit <= 0 {
		limit = historyKeep
	}
	raws, err := r.client.LRange(ctx, keyHistory+subject, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, storeErr("get history", err)
	}

	// Stored newest-first; callers expect oldest-first order.
	out := make([]model.TransactionEvent, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var ev model.TransactionEvent
		if err := json.Unmarshal([]byte(raws[i]), &ev); err != nil {
			return nil, storeErr("decode history event", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *Redis) AppendEvent(ctx context.Context, ev model.TransactionEvent) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	raw, err := json.Marshal(ev)
	if err != nil {
		return storeErr("encode history event", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, keyHistory+ev.Subject, raw)
	pipe.LTrim(ctx, keyHistory+ev.Subject, 0, historyKeep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("append history event", err)
	}
	return nil
}

func (r *Redis) PutReaction(ctx context.Context, re model.Reaction) error {
	return r.putJSON(ctx, keyReaction+re.ID, re, "put reaction")
}

func (r *Redis) putJSON(ctx context.Context, key string, v any, op string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	raw, err := json.Marshal(v)
	if err != nil {
		return storeErr(op, err)
	}
	if err := r.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (r *Redis) getJSON(ctx context.Context, key string, v any, op string) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	raw, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, storeErr(op, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, storeErr(op, err)
	}
	return true, nil
}
