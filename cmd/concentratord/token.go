package main

import (
	"fmt"

	"github.com/lorawan-server/lorawan-concentratord/internal/auth"
	"github.com/lorawan-server/lorawan-concentratord/internal/config"
)

// issueToken signs a status API token for subject, scoped to the configured
// gateway.
func issueToken(cfg *config.Config, subject string) (string, error) {
	gatewayID, err := cfg.GatewayID()
	if err != nil {
		return "", fmt.Errorf("parse gateway id: %w", err)
	}

	return auth.NewJWTManager(&cfg.JWT).GenerateToken(subject, gatewayID.String())
}
