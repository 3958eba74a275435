package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// IsReference reports whether value contains a ${secret:name} reference.
func IsReference(value string) bool {
	return refPattern.MatchString(value)
}

// Resolver tries each provider in order until one has the secret.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger
}

// NewResolver creates a resolver over providers.
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{providers: providers, logger: logger.With("component", "secrets")}
}

// Get returns the value of the named secret from the first provider that
// has it.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, p := range r.providers {
		value, err := p.Get(ctx, name)
		if err == nil {
			r.logger.Debug("secret resolved", "name", redact(name), "provider", p.Name())
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("secret %q from %s: %w", redact(name), p.Name(), err)
		}
		errs = append(errs, err)
	}
	return "", fmt.Errorf("secret %q: %w", redact(name), errors.Join(append([]error{ErrNotFound}, errs...)...))
}

// Resolve replaces every ${secret:name} reference in value. All failures
// are reported together.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	var problems []string
	out := refPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		v, err := r.Get(ctx, name)
		if err != nil {
			problems = append(problems, err.Error())
			return match
		}
		return v
	})
	if len(problems) > 0 {
		return "", fmt.Errorf("failed to resolve secret references: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
