package clientip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tt := []struct {
		desc    string
		headers map[string]string
		want    string
	}{
		{
			desc:    "first forwarded entry wins",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2, 10.0.0.3", "X-Real-IP": "10.9.9.9"},
			want:    "203.0.113.7",
		},
		{
			desc:    "forwarded entry is trimmed",
			headers: map[string]string{"X-Forwarded-For": "  198.51.100.4  "},
			want:    "198.51.100.4",
		},
		{
			desc:    "empty first forwarded entry falls back to real ip",
			headers: map[string]string{"X-Forwarded-For": " , 10.0.0.2", "X-Real-IP": "192.0.2.1"},
			want:    "192.0.2.1",
		},
		{
			desc:    "real ip header",
			headers: map[string]string{"X-Real-IP": " 192.0.2.44 "},
			want:    "192.0.2.44",
		},
		{
			desc: "no headers",
			want: Unknown,
		},
	}

	res := New("", "")
	for _, ts := range tt {
		t.Run(ts.desc, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPatch, "http://example/api/packages/1", nil)
			r.RemoteAddr = "10.0.0.1:5555"
			for k, v := range ts.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, ts.want, res.Resolve(r))
		})
	}
}

func TestResolveCustomHeaders(t *testing.T) {
	res := New("CF-Connecting-IP", "True-Client-IP")

	r := httptest.NewRequest(http.MethodDelete, "http://example/", nil)
	r.Header.Set("X-Forwarded-For", "1.1.1.1")
	r.Header.Set("True-Client-IP", "2.2.2.2")
	assert.Equal(t, "2.2.2.2", res.Resolve(r))

	r.Header.Set("CF-Connecting-IP", "3.3.3.3")
	assert.Equal(t, "3.3.3.3", res.Resolve(r))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "api-patch-203.0.113.7", Key("api-patch", "203.0.113.7"))
	assert.Equal(t, "api-delete-unknown", Key("api-delete", Unknown))
}
