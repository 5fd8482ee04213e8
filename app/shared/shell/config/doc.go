// Package config provides the runtime configuration of the loan service:
// database and cache connection settings for every supported adapter, the
// library's lending rules, and the OpenTelemetry provider setup.
//
// Connection strings default to a local development setup and can be
// overridden through environment variables (LOANS_POSTGRES_DSN,
// LOANS_POSTGRES_REPLICA_DSN, LOANS_REDIS_ADDR). The loandesk CLI binds the
// same values to command line flags.
package config
