package config

import (
	"context"
	"fmt"

	"github.com/jonwraymond/toolquery/secret"
)

// secretFields returns pointers to every setting that may hold a secret
// reference, keyed by its YAML path.
func (c *Config) secretFields() map[string]*string {
	m := map[string]*string{
		"adapters.lunarcrush.api_key": &c.Adapters.LunarCrush.APIKey,
		"auth.jwt.secret":             &c.Auth.JWT.Secret,
	}
	for i := range c.Auth.APIKeys {
		m[fmt.Sprintf("auth.api_keys[%d].key", i)] = &c.Auth.APIKeys[i].Key
	}
	return m
}

// ResolveSecrets replaces secret references in credential fields with
// their values, using providers from reg (secret.NewDefaultRegistry when
// nil) named by c.Secrets.Providers.
func (c *Config) ResolveSecrets(ctx context.Context, reg *secret.Registry) error {
	if reg == nil {
		reg = secret.NewDefaultRegistry()
	}
	r, err := secret.NewResolverFromRegistry(reg, c.Secrets.Providers, c.Secrets.Config)
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	defer r.Close()
	if err := r.ResolveAll(ctx, c.secretFields()); err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	return nil
}
