package paygate

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402-foundation/swapgate/internal/types"
)

func encodeEvidence(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestDecodeEvidence_Valid(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "top-level transaction",
			header: encodeEvidence(`{"transaction":"c2lnbmVk"}`),
			want:   "c2lnbmVk",
		},
		{
			name:   "nested under payload",
			header: encodeEvidence(`{"x402Version":1,"payload":{"transaction":"c2lnbmVk"}}`),
			want:   "c2lnbmVk",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvidence(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEvidence_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"empty header", ""},
		{"not base64", "%%%not-base64%%%"},
		{"base64 of non-JSON", encodeEvidence("just text")},
		{"JSON array", encodeEvidence(`["transaction"]`)},
		{"missing transaction", encodeEvidence(`{"x402Version":1}`)},
		{"empty transaction", encodeEvidence(`{"transaction":""}`)},
		{"empty payload transaction", encodeEvidence(`{"payload":{"transaction":""}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvidence(tt.header)
			var gwErr *types.GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, types.ErrCodeInvalidEvidence, gwErr.Code)
		})
	}
}
