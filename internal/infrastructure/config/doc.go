// Package config handles loading and validating FBot Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The JWT secret gates who may fire the turret and must be set before the API is enabled
//
// Turret timings (reload_timeout, spin_up, shot_flight_min, ...) accept Go
// duration strings such as "600ms" or "10s".
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ID)
package config
