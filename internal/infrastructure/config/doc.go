// Package config handles loading and validating wallbox bridge configuration.
//
// This package manages:
//   - Loading runtime configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The bridge declaration itself (remote address, client id, topic rules)
// lives in a separate line-oriented file parsed by internal/bridgespec.
// This package only carries what that declaration never did: credentials,
// TLS, reconnect backoff, and observability settings.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.SpecFile)
package config
