package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Calendly (booking service) configuration
	CalendlyBaseURL      string
	CalendlyToken        string
	CalendlyOrganization string

	// Salesforce (CRM) configuration
	SalesforceLoginURL     string
	SalesforceClientID     string
	SalesforceClientSecret string
	SalesforceUsername     string
	SalesforcePassword     string
	SalesforceAuthFlow     string
	SalesforceAPIVersion   string

	// Lead lookup retry policy
	LeadLookupMaxAttempts int
	LeadLookupBaseDelay   time.Duration

	// Reconciliation sweep
	SweepSecret      string
	SweepWindow      time.Duration
	SweepMaxInvitees int

	// Optional Redis-backed Salesforce session cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CalendlyBaseURL:      getEnv("CALENDLY_BASE_URL", "https://api.calendly.com"),
		CalendlyToken:        getEnv("CALENDLY_TOKEN", ""),
		CalendlyOrganization: getEnv("CALENDLY_ORGANIZATION", ""),

		SalesforceLoginURL:     getEnv("SALESFORCE_LOGIN_URL", "https://login.salesforce.com"),
		SalesforceClientID:     getEnv("SALESFORCE_CLIENT_ID", ""),
		SalesforceClientSecret: getEnv("SALESFORCE_CLIENT_SECRET", ""),
		SalesforceUsername:     getEnv("SALESFORCE_USERNAME", ""),
		SalesforcePassword:     getEnv("SALESFORCE_PASSWORD", ""),
		SalesforceAuthFlow:     strings.ToLower(strings.TrimSpace(getEnv("SALESFORCE_AUTH_FLOW", "client_credentials"))),
		SalesforceAPIVersion:   getEnv("SALESFORCE_API_VERSION", "v60.0"),

		LeadLookupMaxAttempts: getEnvAsInt("LEAD_LOOKUP_MAX_ATTEMPTS", 5),
		LeadLookupBaseDelay:   getEnvAsDuration("LEAD_LOOKUP_BASE_DELAY", 2*time.Second),

		SweepSecret:      getEnv("SWEEP_SECRET", ""),
		SweepWindow:      getEnvAsDuration("SWEEP_WINDOW", 24*time.Hour),
		SweepMaxInvitees: getEnvAsInt("SWEEP_MAX_INVITEES", 500),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SALESFORCE_SESSION_TTL", 30*time.Minute),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
