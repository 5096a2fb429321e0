package config

import (
	"net/url"
	"os"

	"github.com/steveyegge/jparent/internal/telemetry"
)

// LoadTelemetry builds telemetry settings from the "otel" section:
//
//	otel.enabled           JPARENT_OTEL_ENABLED
//	otel.stdout            JPARENT_OTEL_STDOUT
//	otel.endpoint          JPARENT_OTEL_ENDPOINT, then OTEL_EXPORTER_OTLP_ENDPOINT
//	otel.metrics_endpoint  then OTEL_EXPORTER_OTLP_METRICS_ENDPOINT
//	otel.service_name      OTEL_SERVICE_NAME wins when set
//	otel.attributes        map of extra resource attributes
//
// The Jira host and config file in use are added as resource attributes.
func LoadTelemetry(version string) telemetry.Settings {
	s := telemetry.Settings{
		Enabled:         GetBool("otel.enabled"),
		Stdout:          GetBool("otel.stdout"),
		Endpoint:        firstNonEmpty(GetString("otel.endpoint"), os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		MetricsEndpoint: firstNonEmpty(GetString("otel.metrics_endpoint"), os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")),
		ServiceName:     firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), GetString("otel.service_name")),
		Version:         version,
		Attributes:      map[string]string{},
	}
	if v != nil {
		for k, val := range v.GetStringMapString("otel.attributes") {
			s.Attributes[k] = val
		}
	}

	if host := hostOf(firstNonEmpty(GetString("jira.url"), os.Getenv("JIRA_URL"))); host != "" {
		s.Attributes[string(telemetry.AttrJiraHost)] = host
	}
	if used := ConfigFileUsed(); used != "" {
		s.Attributes[string(telemetry.AttrConfigFile)] = used
	}
	return s
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
