// Package config provides configuration management for the DuraGraph
// control plane.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values have sensible defaults for development use.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("API will listen on %s\n", cfg.ListenAddr())
package config
