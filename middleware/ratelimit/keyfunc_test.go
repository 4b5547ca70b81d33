package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyFunc(t *testing.T) {
	cases := []struct {
		name       string
		keyHeader  string
		trustXFF   bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "header da chave tem prioridade",
			keyHeader:  "X-Api-Key",
			trustXFF:   true,
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Api-Key": "  tenant-42 ", "X-Forwarded-For": "1.2.3.4"},
			want:       "tenant-42",
		},
		{
			name:       "header vazio cai para RemoteAddr",
			keyHeader:  "X-Api-Key",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Api-Key": "   "},
			want:       "10.0.0.1",
		},
		{
			name:       "primeiro IP do X-Forwarded-For",
			trustXFF:   true,
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8"},
			want:       "1.2.3.4",
		},
		{
			name:       "X-Forwarded-For ignorado sem trustXFF",
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "10.0.0.9",
		},
		{
			name:       "RemoteAddr sem porta",
			remoteAddr: "unix-socket",
			want:       "unix-socket",
		},
		{
			name: "sem identidade",
			want: "unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "http://gateway/ask", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tc.want, DefaultKeyFunc(tc.keyHeader, tc.trustXFF)(r))
		})
	}
}
