package ratelimit

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidPolicy is returned when a policy has a non-positive window or limit.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// DefaultMessage is the deny message used when a policy does not set one.
const DefaultMessage = "Too many requests, please try again later."

// DefaultPolicy applies to endpoints with no entry in the table: 60 requests per minute.
var DefaultPolicy = Policy{
	Window:  time.Minute,
	Max:     60,
	Message: DefaultMessage,
}

// Policy limits how many requests a caller may make within a window.
type Policy struct {
	Window  time.Duration
	Max     int64
	Message string
}

// Validate reports whether the policy can be enforced.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidPolicy, p.Window)
	}

	if p.Max <= 0 {
		return fmt.Errorf("%w: max must be positive, got %d", ErrInvalidPolicy, p.Max)
	}

	return nil
}

// Overrides replaces individual policy fields for a single call site.
// Zero values leave the underlying field untouched.
type Overrides struct {
	Window  time.Duration
	Max     int64
	Message string
}

// complete reports whether the overrides define a usable policy on their own.
func (o *Overrides) complete() bool {
	return o != nil && o.Window > 0 && o.Max > 0
}

// PolicyTable maps logical endpoint names to policies.
type PolicyTable struct {
	policies map[string]Policy
	fallback Policy
}

// NewPolicyTable creates a table from named policies. Entries without a
// message inherit DefaultMessage.
func NewPolicyTable(policies map[string]Policy) (*PolicyTable, error) {
	table := &PolicyTable{
		policies: make(map[string]Policy, len(policies)),
		fallback: DefaultPolicy,
	}

	for name, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", name, err)
		}

		if p.Message == "" {
			p.Message = DefaultMessage
		}

		table.policies[name] = p
	}

	return table, nil
}

// Lookup resolves the policy for an endpoint. Explicit overrides win field by
// field over the named policy. Unknown endpoints get DefaultPolicy unless the
// overrides define both window and max.
func (t *PolicyTable) Lookup(name string, overrides *Overrides) Policy {
	base, ok := t.policies[name]
	if !ok {
		if !overrides.complete() {
			base = t.fallback
		}
	}

	if overrides == nil {
		return base
	}

	if overrides.Window > 0 {
		base.Window = overrides.Window
	}

	if overrides.Max > 0 {
		base.Max = overrides.Max
	}

	if overrides.Message != "" {
		base.Message = overrides.Message
	}

	if base.Message == "" {
		base.Message = DefaultMessage
	}

	return base
}

// Names returns the endpoint names known to the table.
func (t *PolicyTable) Names() []string {
	names := make([]string, 0, len(t.policies))
	for name := range t.policies {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
