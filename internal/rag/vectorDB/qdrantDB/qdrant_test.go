package qdrantDB

import (
	"errors"
	"testing"

	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
)

func payloadOf(key string, total int) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"identity": key,
		"built_at": int64(1700000000),
		"total":    total,
	})
}

func TestCheckComplete(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		count   uint64
		payload map[string]*qdrant.Value
		wantErr bool
	}{
		{name: "all points present", key: "alice|doc", count: 300, payload: payloadOf("alice|doc", 300)},
		{name: "batch missing", key: "alice|doc", count: 100, payload: payloadOf("alice|doc", 300), wantErr: true},
		{name: "no total recorded", key: "alice|doc", count: 100, payload: qdrant.NewValueMap(map[string]any{"identity": "alice|doc"}), wantErr: true},
		{name: "other identity", key: "alice|doc", count: 300, payload: payloadOf("bob|doc", 300), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkComplete("docusense_x", tt.key, tt.count, tt.payload)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ragErrors.ErrIndexLoadFailed), "got %v", err)
		})
	}
}
