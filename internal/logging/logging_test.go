package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactionHookScrubsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	log.WithFields(logrus.Fields{
		"identifier": "ana@example.com",
		"password":   "hunter22",
		"xc-token":   "nocodb-token",
		"nested": map[string]any{
			"session_cookie": "abc.def",
			"ip":             "10.0.0.1",
		},
	}).WithError(errors.New("lookup failed")).Warn("login lookup")

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "ana@example.com", out["identifier"])
	assert.Equal(t, Redacted, out["password"])
	assert.Equal(t, Redacted, out["xc-token"])
	assert.Equal(t, "lookup failed", out["error"])

	nested := out["nested"].(map[string]any)
	assert.Equal(t, Redacted, nested["session_cookie"])
	assert.Equal(t, "10.0.0.1", nested["ip"])
	assert.NotContains(t, buf.String(), "hunter22")
}

func TestRedactStringMaps(t *testing.T) {
	in := map[string]any{
		"headers": map[string]string{"Authorization": "Bearer x", "Accept": "json"},
		"user":    "ana",
	}
	out := Redact(in)

	headers := out["headers"].(map[string]string)
	assert.Equal(t, Redacted, headers["Authorization"])
	assert.Equal(t, "json", headers["Accept"])
	assert.Equal(t, "ana", out["user"])
	assert.Equal(t, "Bearer x", in["headers"].(map[string]string)["Authorization"], "input is not mutated")
}

func TestRedactStopsAtMaxDepth(t *testing.T) {
	leaf := map[string]any{"password": "p"}
	var v any = leaf
	for i := 0; i < maxRedactDepth+1; i++ {
		v = map[string]any{"n": v}
	}
	out := Redact(v.(map[string]any))

	cur := out
	for i := 0; i < maxRedactDepth; i++ {
		cur = cur["n"].(map[string]any)
	}
	assert.Equal(t, leaf, cur["n"], "maps beyond the depth limit are passed through")
}

func TestIsSensitive(t *testing.T) {
	for _, k := range []string{"password", "PasswordHash", "api_token", "Cookie", "session", "client_secret"} {
		assert.True(t, IsSensitive(k), k)
	}
	for _, k := range []string{"identifier", "ip", "user_agent", "company"} {
		assert.False(t, IsSensitive(k), k)
	}
}

func TestNewRejectsUnknownOptions(t *testing.T) {
	_, err := New(Config{Level: "loud"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Format: "xml"}, nil)
	assert.Error(t, err)
}
