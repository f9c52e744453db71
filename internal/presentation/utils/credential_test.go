package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		cookie string
		want   string
	}{
		{name: "query", target: "/ws?token=abc", want: "abc"},
		{name: "bearer header", target: "/ws", header: "Bearer xyz", want: "xyz"},
		{name: "cookie", target: "/ws", cookie: "c00k", want: "c00k"},
		{name: "query wins", target: "/ws?token=abc", header: "Bearer xyz", cookie: "c00k", want: "abc"},
		{name: "header beats cookie", target: "/ws", header: "Bearer xyz", cookie: "c00k", want: "xyz"},
		{name: "basic header ignored", target: "/ws", header: "Basic Zm9v"},
		{name: "none", target: "/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CookieToken, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, CredentialFromRequest(r))
		})
	}
}
