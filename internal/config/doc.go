// Package config provides centralized configuration management for the
// BCB Radar service. It handles loading configuration from multiple
// sources, validation, and a type-safe API for the rest of the
// application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//	1. Environment variables (highest priority)
//	2. config.yaml / configs/config.yaml
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern RADAR_* for namespacing:
//
//	RADAR_SERVER_PORT=8080
//	RADAR_LOGGING_LEVEL=debug
//	RADAR_BCB_OLINDA_BASE_URL=https://olinda.bcb.gov.br
//	RADAR_BCB_RATE_PER_SECOND=2
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
