package config

// Version is the guardd binary version.
// Set at build time via: -ldflags "-X github.com/relaydesk/tenantguard/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
