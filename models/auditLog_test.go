package models

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flowstock/flowstock_backend/utils"
)

// The recorder is asynchronous; these tests swap persistAuditEntry for an
// in-memory sink and drain the queue through StopAuditRecorder.
func TestAuditRecorderDrainsQueue(t *testing.T) {
	var mu sync.Mutex
	var captured []AuditLog
	orig := persistAuditEntry
	persistAuditEntry = func(entry *AuditLog) error {
		mu.Lock()
		defer mu.Unlock()
		captured = append(captured, *entry)
		return nil
	}
	defer func() { persistAuditEntry = orig }()

	StartAuditRecorder()

	ctx := utils.SetUsernameInContext(context.Background(), "operator1")
	ctx = utils.SetCorrelationIdInContext(ctx, "corr-123")

	RecordAudit(ctx, AuditActionOrderCreated, "SalesOrder", 42, "order SO-1 created")
	RecordAudit(context.Background(), AuditActionStockAdjusted, "Product", 7, "manual recount")

	// fire-and-forget: RecordAudit must return before persistence
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(captured)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recorder did not drain queue: %d/2 entries", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	first := captured[0]
	if first.Actor != "operator1" {
		t.Errorf("actor: want operator1, got %q", first.Actor)
	}
	if first.CorrelationId != "corr-123" {
		t.Errorf("correlation id: want corr-123, got %q", first.CorrelationId)
	}
	if first.Action != AuditActionOrderCreated || first.TargetId != 42 {
		t.Errorf("unexpected entry: %+v", first)
	}

	second := captured[1]
	if second.Actor != "system" {
		t.Errorf("anonymous context must fall back to system actor, got %q", second.Actor)
	}
	if second.CorrelationId == "" {
		t.Error("missing correlation id must be generated, not empty")
	}
}
