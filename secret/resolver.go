package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const refPrefix = "secretref:"

var inlineRef = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// Resolver expands environment variables and secret references in
// configuration values.
type Resolver struct {
	providers map[string]Provider

	// Strict rejects references that resolve to the empty string.
	Strict bool
}

// NewResolver creates a strict Resolver over providers.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), Strict: true}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// NewResolverFromRegistry creates one provider per name from reg.
// Configuration for a provider is looked up in cfg by name.
func NewResolverFromRegistry(reg *Registry, names []string, cfg map[string]map[string]any) (*Resolver, error) {
	r := NewResolver()
	for _, name := range names {
		p, err := reg.Create(name, cfg[name])
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.providers[p.Name()] = p
	}
	return r, nil
}

// ParseRef splits a whole-value reference into provider and ref.
func ParseRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// Resolve expands value. A whole-value reference is replaced by the
// secret; inline references are substituted in place.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if provider, ref, ok := ParseRef(expanded); ok {
		return r.lookup(ctx, provider, ref)
	}
	if !strings.Contains(expanded, refPrefix) {
		return expanded, nil
	}

	var firstErr error
	out := inlineRef.ReplaceAllStringFunc(expanded, func(m string) string {
		parts := inlineRef.FindStringSubmatch(m)
		v, err := r.lookup(ctx, parts[1], parts[2])
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveAll resolves every value of m in place. Keys name the failing
// entry in errors.
func (r *Resolver) ResolveAll(ctx context.Context, m map[string]*string) error {
	for key, ptr := range m {
		if ptr == nil || *ptr == "" {
			continue
		}
		v, err := r.Resolve(ctx, *ptr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", key, err)
		}
		*ptr = v
	}
	return nil
}

func (r *Resolver) lookup(ctx context.Context, name, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty ref for provider %s", ErrInvalidRef, name)
	}
	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.Strict && v == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, name)
	}
	return v, nil
}

// Close closes every provider.
func (r *Resolver) Close() error {
	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
