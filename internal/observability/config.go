package observability

import (
	"strings"

	"github.com/smallbiznis/memberrequest/internal/config"
)

// Config holds observability settings derived from the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	LogLevel    string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "memberrequest"
	}
	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             cfg.LogLevel,
		OtelEnabled:          cfg.Otel.Enabled,
		OtelExporterEndpoint: cfg.Otel.ExporterEndpoint,
		OtelExporterProtocol: cfg.Otel.ExporterProtocol,
		OtelSamplingRatio:    cfg.Otel.SamplingRatio,
	}
}

func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
