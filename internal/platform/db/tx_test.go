package db

import (
	"context"
	"testing"
)

func TestQuerierFromContext_NoTransaction(t *testing.T) {
	if q := QuerierFromContext(context.Background()); q != nil {
		t.Errorf("expected nil querier outside a transaction, got %T", q)
	}
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx outside a transaction, got %T", tx)
	}
}
