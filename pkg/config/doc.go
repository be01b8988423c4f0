// Package config loads the service configuration.
//
// Settings come from environment variables, parsed with
// github.com/caarlos0/env into the Config struct of each package. The
// provider list comes from an optional YAML file (PROVIDERS_FILE) plus
// GitHub and Google presets enabled by GITHUB_CLIENT_ID and
// GOOGLE_CLIENT_ID.
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	registry, err := oauth.NewRegistry(cfg.Providers)
package config
