package services

import (
	"testing"

	"gorm.io/datatypes"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
)

func TestDecodeScopes(t *testing.T) {
	if got := decodeScopes(nil); got != nil {
		t.Fatalf("nil raw should decode to nil, got %v", got)
	}

	got := decodeScopes(datatypes.JSON([]byte(`["ingest","decide"]`)))
	if len(got) != 2 || got[0] != types.ScopeIngest || got[1] != types.ScopeDecide {
		t.Fatalf("decoded scopes mismatch: %v", got)
	}

	if got := decodeScopes(datatypes.JSON([]byte(`{"not":"an array"}`))); got != nil {
		t.Fatalf("malformed scopes should decode to nil, got %v", got)
	}
}
