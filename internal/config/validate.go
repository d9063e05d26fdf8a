package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not block
	// execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "events.brokers[0]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be returned as an error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// KnownStorageKinds lists the storage kinds Validate accepts without warning.
// The storage registry is authoritative at runtime.
var KnownStorageKinds = []string{"mssql", "mysql", "postgres", "sqlite"}

// Validate performs static checks over cfg. It does not mutate cfg.
func Validate(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	issues = append(issues, validateStorage(cfg.Storage)...)
	issues = append(issues, validateIngest(cfg.Ingest)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	issues = append(issues, validateEvents(cfg.Events)...)
	issues = append(issues, validateServer(cfg.Server)...)
	issues = append(issues, validateWatch(cfg.Watch)...)
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	}
	known := false
	for _, k := range KnownStorageKinds {
		if k == s.Kind {
			known = true
			break
		}
	}
	if !known {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; expected one of %s", s.Kind, strings.Join(KnownStorageKinds, ", ")),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}
	if s.MaxConns < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.max_conns",
			Message:  "storage.max_conns must be >= 0",
		})
	}
	if s.Kind == "sqlite" && s.MaxConns > 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.max_conns",
			Message:  "sqlite uses a single connection; max_conns is ignored",
		})
	}
	return issues
}

func validateIngest(in Ingest) []Issue {
	var issues []Issue
	if in.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.workers",
			Message:  "ingest.workers must be >= 0",
		})
	}
	if s, ok := in.CSV["comma"].(string); ok && len([]rune(s)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.csv.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", s),
		})
	}
	if in.CSV.Int("skip_rows", 0) < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.csv.skip_rows",
			Message:  "skip_rows must be >= 0",
		})
	}
	if v, ok := in.JSON["flatten"]; ok {
		if _, isBool := v.(bool); !isBool {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "ingest.json.flatten",
				Message:  "flatten should be a boolean; value ignored",
			})
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus backend requires pushgateway_url",
			})
		} else if _, err := url.ParseRequestURI(m.PushgatewayURL); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  fmt.Sprintf("invalid URL: %v", err),
			})
		}
	case "datadog":
		if m.DogStatsDAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.dogstatsd_addr",
				Message:  "dogstatsd_addr empty; the client default is used",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q", m.Backend),
		})
	}
	return issues
}

func validateEvents(e Events) []Issue {
	var issues []Issue
	switch e.Kind {
	case "", "none", "nop":
	case "kafka":
		if len(e.Brokers) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "events.brokers",
				Message:  "kafka events require at least one broker",
			})
		}
		for i, b := range e.Brokers {
			if strings.TrimSpace(b) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("events.brokers[%d]", i),
					Message:  "broker address must not be empty",
				})
			}
		}
		if strings.TrimSpace(e.Topic) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "events.topic",
				Message:  "kafka events require a topic",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "events.kind",
			Message:  fmt.Sprintf("unknown events kind %q", e.Kind),
		})
	}
	return issues
}

func validateServer(s Server) []Issue {
	var issues []Issue
	if s.MaxUploadMB < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "server.max_upload_mb",
			Message:  "server.max_upload_mb must be >= 0",
		})
	}
	if s.RatePerSec < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "server.rate_per_sec",
			Message:  "server.rate_per_sec must be >= 0",
		})
	}
	if s.RatePerSec > 0 && s.Burst <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "server.burst",
			Message:  "burst <= 0 with a rate limit set; using burst=1",
		})
	}
	return issues
}

func validateWatch(w Watch) []Issue {
	var issues []Issue
	if w.Debounce < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "watch.debounce",
			Message:  "watch.debounce must be >= 0",
		})
	}
	return issues
}
