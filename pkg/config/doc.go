// Package config provides application configuration management.
//
// # Overview
//
// Configuration starts from defaults, is optionally overlaid by a YAML file
// named by SITEMGMT_CONFIG_FILE and finally by SITEMGMT_* environment
// variables. OAuth client credentials may come from a client secrets file in
// the Google API console format.
//
// # Configuration Structure
//
// Server settings:
//
//	SITEMGMT_PORT="8080"
//	SITEMGMT_HEALTH_PORT="9090"
//	SITEMGMT_BASE_URL="https://admin.example.com"  # redirect URI is BASE_URL/callback
//	SITEMGMT_SECURE_COOKIES="true"
//
// Sign-in and sessions:
//
//	SITEMGMT_CLIENT_SECRETS_FILE="/etc/sitemgmt/client_secret.json"
//	SITEMGMT_PROVIDER_TIMEOUT="10s"
//	SITEMGMT_SESSION_SECRET="..."  # at least 32 bytes
//	SITEMGMT_SESSION_TTL="15m"
//
// Storage:
//
//	SITEMGMT_STORE="postgres"  # postgres, sqlite3, memory
//	SITEMGMT_DATABASE_DSN="postgres://localhost/sitemgmt?sslmode=disable"
//
// Notifications:
//
//	SITEMGMT_NOTIFIER="ses"  # log, ses, redis
//	SITEMGMT_SES_FROM="sitemgmt@example.com"
//	SITEMGMT_SES_RECIPIENTS="ops@example.com,security@example.com"
//	SITEMGMT_NOTIFY_TIMEOUT="5s"
//
// Observability settings:
//
//	SITEMGMT_LOG_LEVEL="info"  # debug, info, warn, error
//	SITEMGMT_OTEL_ENABLED="true"
//	SITEMGMT_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
