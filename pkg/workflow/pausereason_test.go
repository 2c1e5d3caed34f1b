package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPauseReasonRoundTrip(t *testing.T) {
	cases := []PauseReason{
		UnresolvableParams{BlockedStep: "deploy", MissingParam: "region", SuggestedTool: "demo.deploy"},
		SchemaMismatch{BlockedStep: "deploy", MissingFields: []string{"region"}, SuggestedTool: "demo.deploy"},
		ToolError{FailedStep: "deploy", Error: "timeout", Retryable: true, SuggestedTool: "demo.deploy"},
		UnresolvedDependency{BlockedStep: "notify", MissingOutput: "deploymentId", ProducingStep: "deploy", SuggestedTool: "demo.notify"},
	}

	for _, original := range cases {
		t.Run(original.Type(), func(t *testing.T) {
			encoded, err := json.Marshal(original)
			require.NoError(t, err)

			var decodedType struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal(encoded, &decodedType))
			require.Equal(t, original.Type(), decodedType.Type)

			decoded, err := UnmarshalPauseReason(encoded)
			require.NoError(t, err)
			require.Equal(t, original, decoded)
		})
	}
}

func TestUnmarshalPauseReasonRejectsUnknownType(t *testing.T) {
	_, err := UnmarshalPauseReason([]byte(`{"type":"bogus"}`))
	require.Error(t, err)
}
