// Package envguard is the only place configuration is read from. It keeps
// browser-visible values (public prefix, allow-listed) apart from server-only
// secrets (deny-listed) and fails loudly when the two leak into each other.
//
// Every failure returned here is meant to stop the process: a misconfigured
// security boundary is not a recoverable state.
package envguard

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

// Guard scopes configuration reads to client or server context.
type Guard struct {
	policy   Policy
	src      envconfig.Lookuper
	log      zerolog.Logger
	validate *validator.Validate

	allowed   map[string]struct{}
	denied    map[string]struct{}
	sensitive map[string]struct{}
}

// Option customises a Guard.
type Option func(*Guard)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(g *Guard) { g.policy = p }
}

// WithLogger sets the logger warnings are written to. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Guard) { g.log = log }
}

// New builds a Guard reading from src (envconfig.OsLookuper() in production).
// It refuses a policy that violates its own invariants.
func New(src envconfig.Lookuper, opts ...Option) (*Guard, error) {
	g := &Guard{
		policy: DefaultPolicy(),
		src:    src,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.policy.Validate(); err != nil {
		return nil, err
	}

	g.allowed = toSet(g.policy.ClientAllowList)
	g.denied = toSet(g.policy.ServerDenyList)
	g.sensitive = toSet(g.policy.SensitiveKeys)
	g.validate = newEnvValidator()
	return g, nil
}

// Policy returns the policy the guard enforces.
func (g *Guard) Policy() Policy { return g.policy }

// Ensure returns the value of name without any scoping check.
func (g *Guard) Ensure(name string) (string, error) {
	v, ok := g.read(name)
	if !ok {
		return "", varErr(ErrMissingEnvironmentVariable, name)
	}
	return v, nil
}

// EnsureClient returns an allow-listed, browser-safe value.
func (g *Guard) EnsureClient(name string) (string, error) {
	v, ok, err := g.LookupClient(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", varErr(ErrMissingClientVariable, name)
	}
	return v, nil
}

// LookupClient is EnsureClient for optional keys: scoping violations are still
// errors, absence is reported through ok.
func (g *Guard) LookupClient(name string) (value string, ok bool, err error) {
	if _, allowed := g.allowed[name]; !allowed {
		return "", false, varErr(ErrInvalidClientVariable, name)
	}
	if base := strings.TrimPrefix(name, g.policy.PublicPrefix); base != name {
		if _, secret := g.denied[base]; secret {
			return "", false, &VarError{Kind: ErrSecurityViolation, Name: base, Detail: "requested as " + name}
		}
	}
	value, ok = g.read(name)
	return value, ok, nil
}

// EnsureServer returns a server-scoped value. Client-prefixed names are
// rejected: server code reads the unprefixed form.
func (g *Guard) EnsureServer(name string) (string, error) {
	v, ok, err := g.LookupServer(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", varErr(ErrMissingServerVariable, name)
	}
	return v, nil
}

// LookupServer is EnsureServer for optional keys.
func (g *Guard) LookupServer(name string) (value string, ok bool, err error) {
	if strings.HasPrefix(name, g.policy.PublicPrefix) {
		return "", false, varErr(ErrInvalidServerVariable, name)
	}
	value, ok = g.read(name)
	return value, ok, nil
}

// Lookup satisfies envconfig.Lookuper with server scope, so process settings
// decoded by go-envconfig pass through the guard. A client-prefixed key is
// reported as unset.
func (g *Guard) Lookup(key string) (string, bool) {
	v, ok, err := g.LookupServer(key)
	if err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("blocked client-scoped read from server configuration")
		return "", false
	}
	return v, ok
}

// read treats empty and whitespace-only values as unset.
func (g *Guard) read(name string) (string, bool) {
	v, ok := g.src.Lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// exposed reports whether name is set to any non-empty value. Whitespace still
// counts: a blank secret under the public prefix is shipped to the browser.
func (g *Guard) exposed(name string) bool {
	v, ok := g.src.Lookup(name)
	return ok && v != ""
}

func (g *Guard) overrideSensitive() bool {
	if g.policy.OverrideFlag == "" {
		return false
	}
	v, ok := g.read(g.policy.OverrideFlag)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func toSet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}
