package paygate

import (
	"encoding/base64"
	"encoding/json"
	"regexp"

	"github.com/xeipuuv/gojsonschema"

	"github.com/x402-foundation/swapgate/internal/types"
)

// Base64 regex pattern - requires at least one character
var base64Regex = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// evidenceSchema describes the accepted payment-evidence wire shapes: the
// signed transaction blob either at the top level or nested under payload.
const evidenceSchema = `{
	"type": "object",
	"anyOf": [
		{
			"required": ["transaction"],
			"properties": {
				"transaction": {"type": "string", "minLength": 1}
			}
		},
		{
			"required": ["payload"],
			"properties": {
				"payload": {
					"type": "object",
					"required": ["transaction"],
					"properties": {
						"transaction": {"type": "string", "minLength": 1}
					}
				}
			}
		}
	]
}`

var evidenceSchemaLoader = gojsonschema.NewStringLoader(evidenceSchema)

// paymentEvidence is the decoded header body.
type paymentEvidence struct {
	Transaction string `json:"transaction,omitempty"`
	Payload     *struct {
		Transaction string `json:"transaction"`
	} `json:"payload,omitempty"`
}

// DecodeEvidence validates and decodes a payment-evidence header, returning
// the embedded signed-transaction blob. Every failure is a caller error,
// never a payment-required outcome.
func DecodeEvidence(header string) (string, error) {
	if header == "" {
		return "", types.NewGatewayError(types.ErrCodeInvalidEvidence, "payment header is empty", nil)
	}
	if !base64Regex.MatchString(header) {
		return "", types.NewGatewayError(types.ErrCodeInvalidEvidence, "payment header is not valid base64", nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return "", types.NewGatewayError(types.ErrCodeInvalidEvidence, "payment header base64 decoding failed", nil)
	}

	result, err := gojsonschema.Validate(evidenceSchemaLoader, gojsonschema.NewBytesLoader(decoded))
	if err != nil {
		return "", types.NewGatewayError(types.ErrCodeInvalidEvidence, "payment header is not valid JSON", nil)
	}
	if !result.Valid() {
		details := make(map[string]interface{})
		for i, desc := range result.Errors() {
			if i >= 3 {
				break
			}
			details[desc.Field()] = desc.Description()
		}
		return "", types.NewGatewayError(types.ErrCodeInvalidEvidence, "payment evidence missing transaction", details)
	}

	var evidence paymentEvidence
	if err := json.Unmarshal(decoded, &evidence); err != nil {
		return "", types.NewGatewayError(types.ErrCodeInvalidEvidence, "failed to parse payment evidence", nil)
	}

	if evidence.Transaction != "" {
		return evidence.Transaction, nil
	}
	if evidence.Payload != nil && evidence.Payload.Transaction != "" {
		return evidence.Payload.Transaction, nil
	}
	return "", types.NewGatewayError(types.ErrCodeInvalidEvidence, "payment evidence missing transaction", nil)
}
