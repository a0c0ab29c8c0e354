package ratelimit

// MetadataKey is the key used to store rate limit config in operation metadata.
const MetadataKey = "rateLimit"

// Endpoint identifies the policy a guarded call is checked against.
type Endpoint struct {
	// Name selects a policy from the table. Unknown names use DefaultPolicy.
	Name string

	// Overrides replaces individual fields of the named policy.
	Overrides *Overrides

	// KeyFunc derives the caller identifier. Nil uses the client address.
	KeyFunc KeyFunc
}

// EndpointConfig defines per-endpoint rate limit configuration.
// This can be attached to Huma operations via the Metadata field.
type EndpointConfig struct {
	// Endpoint is the policy to enforce. When Endpoint.Name is empty the
	// middleware uses the operation path as the endpoint name.
	Endpoint Endpoint

	// Disabled skips rate limiting entirely for this endpoint.
	Disabled bool
}
