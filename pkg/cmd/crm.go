package cmd

import (
	"log/slog"

	"github.com/renewos/renewos/pkg/crm"
)

func NewCRMConnector(endpoint, token string, logger *slog.Logger) crm.Connector {
	if endpoint == "" {
		logger.Warn("no crm endpoint configured, updates will only be logged")

		return crm.NewLogConnector(logger)
	}

	return crm.NewHTTPConnector(endpoint, token)
}
