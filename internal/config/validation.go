package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError collects all configuration problems found during Load so
// operators can fix them in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks the configuration. A non-nil return is fatal: the process
// must not serve with broken configuration.
func (c *Config) Validate() error {
	verr := &ValidationError{}

	if c.Auth.InternalAPIKey == "" {
		verr.add("auth.internal_api_key (INTERNAL_API_KEY) is required")
	}

	checkURL := func(name, raw string) {
		if raw == "" {
			verr.add("%s is required", name)
			return
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			verr.add("%s is not a valid URL: %q", name, raw)
		}
	}
	checkURL("agents.risk_url", c.Agents.RiskURL)
	checkURL("agents.technical_url", c.Agents.TechnicalURL)
	checkURL("agents.macro_url", c.Agents.MacroURL)
	checkURL("agents.sentiment_url", c.Agents.SentimentURL)
	checkURL("agents.advisor_url", c.Agents.AdvisorURL)
	checkURL("agents.sizer_url", c.Agents.SizerURL)

	if c.Timeouts.Default <= 0 {
		verr.add("timeouts.default must be positive")
	}
	if c.Timeouts.Decision <= 0 {
		verr.add("timeouts.decision must be positive")
	}
	if c.Timeouts.Exchange <= 0 {
		verr.add("timeouts.exchange must be positive")
	}

	if c.Database.URL == "" {
		verr.add("database.url (DATABASE_URL) is required")
	}
	if c.Database.PoolSize <= 0 {
		verr.add("database.pool_size must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		verr.add("server.port must be in (0,65535]")
	}

	if c.Cycle.Warmup <= 0 {
		verr.add("cycle.warmup must be positive")
	}
	if c.Cycle.MaxConcurrentCycles <= 0 {
		verr.add("cycle.max_concurrent_cycles must be positive")
	}
	if c.Notifier.QueueSize <= 0 {
		verr.add("notifier.queue_size must be positive")
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}
