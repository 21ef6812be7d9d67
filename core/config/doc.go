// Package config provides configuration management for the discovery sync service.
//
// It utilizes Viper for loading configuration from an optional config.yaml, a .env file
// and environment variables. Every key has a default declared on the struct tag, so a
// bare environment with only credentials is enough to run.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key)
//   - Database: mirror database driver and connection details
//   - Discovery: upstream base URL, token and retry policy
//   - Sync: kinds, filters, batch sizes and the run schedule
//   - Storage: S3/MinIO settings for the report archive
//   - Log: Logging level and format
//
// Nested keys map to environment variables by replacing dots with underscores,
// e.g. DISCOVERY_BASE_URL or SYNC_KINDS=Host,VirtualMachine.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Discovery.BaseURL)
package config
