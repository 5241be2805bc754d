package authz

import "time"

// EvalContext carries the caller-supplied request attributes a conditional
// permission is checked against. It is provided per call and never retained.
// An empty field means the attribute was not supplied.
type EvalContext struct {
	UserID      string `json:"user_id,omitempty"`
	ClientIP    string `json:"client_ip,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// condition is a single predicate narrowing a permission grant. Predicates
// are conjunctive: every condition attached to a permission must pass.
type condition interface {
	evaluate(p Principal, ctx *EvalContext, now time.Time) bool
}

// ownerCondition denies when ownership is required and the request's user is
// someone other than the principal.
type ownerCondition struct {
	required bool
}

func (c ownerCondition) evaluate(p Principal, ctx *EvalContext, _ time.Time) bool {
	if !c.required {
		return true
	}
	if ctx.UserID == "" {
		return true
	}
	return ctx.UserID == p.ID
}

// timeRangeCondition bounds when the permission applies. The boundary
// instants themselves are allowed; zero bounds are open. An unparsable bound
// fails closed via the invalid flag.
type timeRangeCondition struct {
	start   time.Time
	end     time.Time
	invalid bool
}

func (c timeRangeCondition) evaluate(_ Principal, _ *EvalContext, now time.Time) bool {
	if c.invalid {
		return false
	}
	if !c.start.IsZero() && now.Before(c.start) {
		return false
	}
	if !c.end.IsZero() && now.After(c.end) {
		return false
	}
	return true
}

// ipAllowlistCondition denies when a client IP is supplied and is not in the
// allowlist. Requests without a client IP pass.
type ipAllowlistCondition struct {
	ips []string
}

func (c ipAllowlistCondition) evaluate(_ Principal, ctx *EvalContext, _ time.Time) bool {
	if ctx.ClientIP == "" {
		return true
	}
	for _, ip := range c.ips {
		if ip == ctx.ClientIP {
			return true
		}
	}
	return false
}

// environmentCondition denies when both sides name an environment and they
// differ. Comparison is exact: case-sensitive, no wildcard.
type environmentCondition struct {
	env string
}

func (c environmentCondition) evaluate(_ Principal, ctx *EvalContext, _ time.Time) bool {
	if c.env == "" || ctx.Environment == "" {
		return true
	}
	return c.env == ctx.Environment
}

// unknownCondition always passes. Unrecognized keys are ignored so that
// policies written for a newer engine still evaluate.
type unknownCondition struct{}

func (unknownCondition) evaluate(Principal, *EvalContext, time.Time) bool { return true }

// parseConditions compiles a raw condition map into the closed set of known
// predicate variants.
func parseConditions(raw Conditions) []condition {
	out := make([]condition, 0, len(raw))
	for key, value := range raw {
		switch key {
		case "owner":
			out = append(out, ownerCondition{required: truthy(value)})
		case "timeRange":
			out = append(out, parseTimeRange(value))
		case "allowedIps":
			out = append(out, ipAllowlistCondition{ips: stringList(value)})
		case "environment":
			env, _ := value.(string)
			out = append(out, environmentCondition{env: env})
		default:
			out = append(out, unknownCondition{})
		}
	}
	return out
}

func parseTimeRange(value interface{}) timeRangeCondition {
	bounds, ok := value.(map[string]interface{})
	if !ok {
		return timeRangeCondition{invalid: true}
	}
	var cond timeRangeCondition
	if raw, present := bounds["start"]; present {
		cond.start, cond.invalid = parseInstant(raw)
		if cond.invalid {
			return cond
		}
	}
	if raw, present := bounds["end"]; present {
		cond.end, cond.invalid = parseInstant(raw)
	}
	return cond
}

func parseInstant(raw interface{}) (t time.Time, invalid bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, false
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, true
		}
		return parsed, false
	default:
		return time.Time{}, true
	}
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

// evaluateConditions checks every condition against the principal and
// context. All must pass; an empty condition set passes trivially.
func evaluateConditions(raw Conditions, p Principal, ctx *EvalContext, now time.Time) bool {
	for _, cond := range parseConditions(raw) {
		if !cond.evaluate(p, ctx, now) {
			return false
		}
	}
	return true
}
