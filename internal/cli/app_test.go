package cli

import (
	"context"
	"testing"
	"time"

	"tipid/internal/backend"
	"tipid/internal/config"
	"tipid/internal/log"
	"tipid/internal/services"
)

func memoryBackend(t *testing.T) *backend.BackendResult {
	t.Helper()
	res, err := backend.NewFactory(log.Discard()).CreateBackend(context.Background(), backend.Config{Type: backend.MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	t.Cleanup(func() { _ = res.Cleanup() })
	return res
}

func TestNewApp(t *testing.T) {
	cfg := &config.Config{
		PasswordScheme: "plain",
		Timezone:       "UTC",
		SessionTTL:     time.Hour,
		CurrencySymbol: "₱",
	}
	app, err := NewApp(memoryBackend(t), cfg, log.Discard())
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	if app.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", app.Location)
	}

	ctx := context.Background()
	reg := app.Auth.Register(ctx, services.RegisterInput{
		FullName:        "Juan Dela Cruz",
		Email:           "juan@example.com",
		Username:        "juan",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	if !reg.Success {
		t.Fatalf("Register() = %q", reg.Message)
	}
	login := app.Auth.Login(ctx, "juan", "secret123")
	if !login.Success {
		t.Fatalf("Login() = %q", login.Message)
	}

	svc := app.HTTPServices()
	if svc.Auth != app.Auth || svc.Dashboard != app.Dashboard || svc.Prices != app.Prices {
		t.Error("HTTPServices() does not expose the app services")
	}
}

func TestNewAppErrors(t *testing.T) {
	tests := []struct {
		name string
		res  *backend.BackendResult
		cfg  *config.Config
	}{
		{"nil backend", nil, &config.Config{}},
		{"unknown scheme", memoryBackend(t), &config.Config{PasswordScheme: "md5"}},
		{"unknown zone", memoryBackend(t), &config.Config{Timezone: "Nowhere/Else"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewApp(tt.res, tt.cfg, log.Discard()); err == nil {
				t.Error("NewApp() error = nil")
			}
		})
	}
}
