package config

import "fmt"

// Validate checks the configuration for inconsistencies after all sources
// are merged.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required when storage.type is postgres")
		}
	default:
		return fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type)
	}

	switch c.Auth.Type {
	case "header":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			return fmt.Errorf("auth.api_keys must not be empty when auth.type is apikey")
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				return fmt.Errorf("auth.api_keys[%d].key is required", i)
			}
			if k.TenantID == "" {
				return fmt.Errorf("auth.api_keys[%d].tenant_id is required", i)
			}
		}
	case "jwt":
		if c.Auth.JWT.Secret == "" {
			return fmt.Errorf("auth.jwt.secret is required when auth.type is jwt")
		}
	default:
		return fmt.Errorf("auth.type must be \"header\", \"apikey\", or \"jwt\", got %q", c.Auth.Type)
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		return fmt.Errorf("observability.metrics.path is required when metrics are enabled")
	}

	return nil
}
