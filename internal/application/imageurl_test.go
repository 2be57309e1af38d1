package application

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerprint-reader/internal/domain"
)

func TestURLSafeToStd(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aGVsbG8", "aGVsbG8="},
		{"aGVsbG8=", "aGVsbG8="},
		{"aGk", "aGk="},
		{"-_-_", "+/+/"},
		{"_-8", "/+8="},
		{"  aGVsbG8\n", "aGVsbG8="},
	}

	for _, tt := range tests {
		got, err := URLSafeToStd(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestURLSafeToStd_MatchesStdlibForRandomPayloads(t *testing.T) {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	for n := 0; n < len(payload); n += 17 {
		raw := payload[:n+1]
		got, err := URLSafeToStd(base64.RawURLEncoding.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString(raw), got)
	}
}

func TestURLSafeToStd_Invalid(t *testing.T) {
	for _, in := range []string{"", "=", "!!", "a+b/", "a"} {
		_, err := URLSafeToStd(in)
		assert.Error(t, err, in)
	}
}

func TestURLSafeToStd_RejectsNonCanonicalTrailingBits(t *testing.T) {
	// "aGVsbG9" и "aGVsbG8" декодируются в одни и те же байты
	for _, in := range []string{"aGVsbG9", "aGVsbG9=", "aGl", "_-9"} {
		_, err := URLSafeToStd(in)
		assert.Error(t, err, in)
	}
}

func TestTrustDeviceImage(t *testing.T) {
	url, raw, err := TrustDeviceImage(domain.Sample{Data: "aGVsbG8", Origin: domain.OriginDevice})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64, aGVsbG8=", string(url))
	assert.Equal(t, []byte("hello"), raw)
}

func TestTrustDeviceImage_RejectsNetworkOrigin(t *testing.T) {
	_, _, err := TrustDeviceImage(domain.Sample{Data: "aGVsbG8", Origin: domain.OriginNetwork})
	assert.ErrorIs(t, err, ErrUntrustedSample)
}
