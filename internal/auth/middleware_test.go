package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	operator, err := Issue(secret, Claims{Operator: "booth-a", Roles: []string{RoleOperator}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	viewer, err := Issue(secret, Claims{Operator: "kiosk", Roles: []string{"viewer"}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"operator bearer token", "/api/v1/admin/polls", "Bearer " + operator, http.StatusOK},
		{"lowercase scheme", "/api/v1/admin/polls", "bearer " + operator, http.StatusOK},
		{"missing role", "/api/v1/admin/polls", "Bearer " + viewer, http.StatusForbidden},
		{"no credentials", "/api/v1/admin/polls", "", http.StatusUnauthorized},
		{"garbage token", "/api/v1/admin/polls", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"query token ignored", "/api/v1/admin/polls?token=" + operator, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims, ok := ClaimsFromContext(r.Context())
				if !ok || claims.Operator != "booth-a" {
					t.Fatalf("expected operator claims in context")
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			Middleware(secret)(next).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d body=%s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}
