package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"valid", "Bearer test-key", "test-key", nil},
		{"surrounding whitespace", "Bearer   test-key  ", "test-key", nil},
		{"missing", "", "", ErrMissingHeader},
		{"basic", "Basic abc", "", ErrBadHeader},
		{"blank", "Bearer   ", "", ErrMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Fatalf("expected token %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	tokens := []TokenConfig{
		{Token: "ui-token", Scopes: []string{ScopeAgentWrite, ScopeEventsRead, " "}},
		{Token: "viewer", Scopes: []string{ScopeAgentRead}},
	}

	admin, ok := Authenticate("admin-key", "admin-key", tokens)
	if !ok || !HasAnyScope(admin, ScopeSettingsRW) {
		t.Fatalf("admin key should authenticate with every scope: %+v", admin)
	}

	ui, ok := Authenticate("ui-token", "admin-key", tokens)
	if !ok {
		t.Fatalf("expected ui token to authenticate")
	}
	if !HasAnyScope(ui, ScopeAgentRead) {
		t.Fatalf("agent:rw should imply agent:ro")
	}
	if HasAnyScope(ui, ScopeSettingsRO, ScopeSettingsRW) {
		t.Fatalf("ui token must not reach settings")
	}
	if _, blank := ui.Scopes[""]; blank {
		t.Fatalf("blank scopes should be dropped")
	}

	viewer, _ := Authenticate("viewer", "admin-key", tokens)
	if HasAnyScope(viewer, ScopeAgentWrite) {
		t.Fatalf("agent:ro must not imply agent:rw")
	}

	if _, ok := Authenticate("nope", "admin-key", tokens); ok {
		t.Fatalf("unknown token authenticated")
	}
	if _, ok := Authenticate("", "", nil); ok {
		t.Fatalf("empty token must never authenticate")
	}
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "http://example.test", nil)
	if _, ok := PrincipalFromContext(req.Context()); ok {
		t.Fatalf("unexpected principal on bare context")
	}
	ctx := WithPrincipal(req.Context(), Principal{Token: "x"})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.Token != "x" {
		t.Fatalf("principal not round-tripped: %+v", p)
	}
}
