package envguard

// WarningKind classifies a non-fatal configuration smell.
type WarningKind string

const (
	// WarningConflictingValues: a key is set in both server and client form
	// with different values, usually stale configuration.
	WarningConflictingValues WarningKind = "conflicting_values"
	// WarningSensitiveExposed: a sensitive (not deny-listed) key is exposed
	// under the public prefix without the override flag.
	WarningSensitiveExposed WarningKind = "sensitive_exposed"
)

// Warning is a configuration problem worth reporting but not worth halting for.
type Warning struct {
	Kind    WarningKind
	Key     string
	Message string
}

// ValidateSecurity fails with ErrSecurityViolation on the first deny-listed
// secret whose client-prefixed form is set. When there is no violation it
// returns the non-fatal warnings, which are also logged.
func (g *Guard) ValidateSecurity() ([]Warning, error) {
	prefix := g.policy.PublicPrefix

	for _, key := range g.policy.ServerDenyList {
		if g.exposed(prefix + key) {
			return nil, &VarError{
				Kind:   ErrSecurityViolation,
				Name:   key,
				Detail: "set as " + prefix + key,
			}
		}
	}

	var warnings []Warning

	for _, clientKey := range g.policy.ClientAllowList {
		serverKey := clientKey[len(prefix):]
		clientVal, okClient := g.read(clientKey)
		serverVal, okServer := g.read(serverKey)
		if okClient && okServer && clientVal != serverVal {
			warnings = append(warnings, Warning{
				Kind:    WarningConflictingValues,
				Key:     serverKey,
				Message: serverKey + " and " + clientKey + " are both set with different values",
			})
		}
	}

	if !g.overrideSensitive() {
		for _, key := range g.policy.SensitiveKeys {
			if g.exposed(prefix + key) {
				warnings = append(warnings, Warning{
					Kind:    WarningSensitiveExposed,
					Key:     key,
					Message: key + " is exposed to client code as " + prefix + key + "; set " + g.policy.OverrideFlag + "=true if intended",
				})
			}
		}
	}

	for _, w := range warnings {
		g.log.Warn().Str("key", w.Key).Str("kind", string(w.Kind)).Msg(w.Message)
	}
	return warnings, nil
}
