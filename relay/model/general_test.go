package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneralErrorResponseToMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai style", `{"error":{"message":"Invalid API key","type":"authentication_error"}}`, "Invalid API key"},
		{"top level message", `{"message":"quota exceeded"}`, "quota exceeded"},
		{"msg field", `{"msg":"bad request"}`, "bad request"},
		{"nested response", `{"response":{"error":{"message":"deep"}}}`, "deep"},
		{"empty", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp GeneralErrorResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))
			assert.Equal(t, tt.want, resp.ToMessage())
		})
	}
}
