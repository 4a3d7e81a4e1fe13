package main

import (
	"testing"

	"github.com/lorawan-server/lorawan-concentratord/internal/auth"
	"github.com/lorawan-server/lorawan-concentratord/internal/config"
)

func TestIssueToken(t *testing.T) {
	cfg := config.Default()
	cfg.Concentrator.GatewayID = "0102030405060708"
	cfg.JWT.Secret = "secret"

	token, err := issueToken(&cfg, "operator")
	if err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}

	claims, err := auth.NewJWTManager(&cfg.JWT).ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "operator" || claims.GatewayID != "0102030405060708" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestIssueTokenErrors(t *testing.T) {
	tests := []struct {
		name      string
		gatewayID string
		secret    string
	}{
		{name: "no secret", gatewayID: "0102030405060708"},
		{name: "bad gateway id", gatewayID: "zz", secret: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Concentrator.GatewayID = tt.gatewayID
			cfg.JWT.Secret = tt.secret

			if _, err := issueToken(&cfg, "operator"); err == nil {
				t.Error("issueToken() should fail")
			}
		})
	}
}
