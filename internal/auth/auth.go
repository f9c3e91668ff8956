package auth

import (
	"context"
	"fmt"
	"strings"
)

// Identity is the authenticated caller. Every stored record is scoped to the
// user it belongs to, so UserID is all downstream code needs.
type Identity struct {
	UserID string
}

// Validator checks one credential kind. Validators are chained; the first
// match wins.
type Validator interface {
	Validate(ctx context.Context, credential string) (Identity, bool)
}

// StaticKeyValidator maps pre-shared API keys to users. The config format is a
// comma-separated list of key:user pairs.
type StaticKeyValidator struct {
	keys map[string]Identity
}

func NewStaticKeyValidator(spec string) (*StaticKeyValidator, error) {
	validator := &StaticKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		key, user, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:user", entry)
		}
		key = strings.TrimSpace(key)
		user = strings.TrimSpace(user)
		if key == "" || user == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/user", entry)
		}
		validator.keys[key] = Identity{UserID: user}
	}
	return validator, nil
}

func (v *StaticKeyValidator) Validate(_ context.Context, credential string) (Identity, bool) {
	identity, ok := v.keys[credential]
	return identity, ok
}

// Chain tries each validator in order.
type Chain []Validator

func (c Chain) Validate(ctx context.Context, credential string) (Identity, bool) {
	for _, validator := range c {
		if identity, ok := validator.Validate(ctx, credential); ok {
			return identity, ok
		}
	}
	return Identity{}, false
}
