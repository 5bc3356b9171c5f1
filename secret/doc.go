// Package secret resolves credentials referenced from configuration.
//
// A configuration value may carry environment variables in ${VAR} form,
// expanded strictly by ExpandEnvStrict, and secret references of the form
//
//	secretref:<provider>:<ref>
//
// either as the whole value ("secretref:env:LUNARCRUSH_API_KEY") or inline
// ("Bearer secretref:file:/run/secrets/token"). References are resolved by
// a Resolver over Providers built from a Registry. The built-in providers
// are "env", which reads an environment variable, and "file", which reads
// a file and trims surrounding whitespace.
//
// Providers must never log the values they return.
package secret
