package store_test

import (
	"testing"

	"github.com/randalmurphal/sigbus"
	"github.com/randalmurphal/sigbus/config"
	"github.com/randalmurphal/sigbus/store"
)

func TestNoopStore_AllNoop(t *testing.T) {
	s := store.NewNoop()
	sig := sigbus.New("evt", map[string]string{"k": "v"})

	if err := s.Save(sig); err != nil {
		t.Errorf("unexpected Save error: %v", err)
	}
	if err := s.MarkAcked(sig.ID()); err != nil {
		t.Errorf("unexpected MarkAcked error: %v", err)
	}
	unacked, err := s.GetUnacked()
	if err != nil {
		t.Errorf("unexpected GetUnacked error: %v", err)
	}
	if unacked != nil {
		t.Errorf("expected nil unacked slice, got %v", unacked)
	}
}

func TestSQLiteStore_SaveAndGetUnacked(t *testing.T) {
	s, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer s.Close()

	sig1 := sigbus.New("order.created", map[string]any{"orderID": "a1"})
	sig2 := sigbus.New("order.shipped", map[string]any{"orderID": "a1"})

	if err := s.Save(sig1); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := s.Save(sig2); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	unacked, err := s.GetUnacked()
	if err != nil {
		t.Fatalf("unexpected GetUnacked error: %v", err)
	}
	if len(unacked) != 2 {
		t.Fatalf("expected 2 unacked signals, got %d", len(unacked))
	}
	// Iteration order follows save order (rowid).
	if unacked[0].ID() != sig1.ID() {
		t.Errorf("expected first unacked to be sig1, got %s", unacked[0].ID())
	}
	if unacked[1].Type() != "order.shipped" {
		t.Errorf("expected second unacked type 'order.shipped', got %s", unacked[1].Type())
	}
}

func TestSQLiteStore_MarkAckedExcludesFromUnacked(t *testing.T) {
	s, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer s.Close()

	sig := sigbus.New("tick", 42)
	if err := s.Save(sig); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := s.MarkAcked(sig.ID()); err != nil {
		t.Fatalf("unexpected markAcked error: %v", err)
	}

	unacked, err := s.GetUnacked()
	if err != nil {
		t.Fatalf("unexpected GetUnacked error: %v", err)
	}
	if len(unacked) != 0 {
		t.Errorf("expected 0 unacked signals after ack, got %d", len(unacked))
	}
}

func TestSQLiteStore_MarkAckedUnknownIDIsNoop(t *testing.T) {
	s, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer s.Close()

	if err := s.MarkAcked("does-not-exist"); err != nil {
		t.Errorf("expected no error acking unknown id, got %v", err)
	}
}

func TestSQLiteStore_RoundTripsPayloadFields(t *testing.T) {
	s, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer s.Close()

	sig := sigbus.New("metric.recorded", map[string]any{"value": 3.5, "unit": "ms"}, sigbus.WithSource("collector"))
	if err := s.Save(sig); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	unacked, err := s.GetUnacked()
	if err != nil {
		t.Fatalf("unexpected GetUnacked error: %v", err)
	}
	if len(unacked) != 1 {
		t.Fatalf("expected 1 unacked signal, got %d", len(unacked))
	}

	got := unacked[0]
	if got.ID() != sig.ID() || got.Type() != sig.Type() || got.Source() != sig.Source() {
		t.Errorf("round-tripped metadata mismatch: got %+v", got)
	}
	data, ok := got.Data().(map[string]any)
	if !ok {
		t.Fatalf("expected map payload, got %T", got.Data())
	}
	if data["unit"] != "ms" {
		t.Errorf("expected unit 'ms', got %v", data["unit"])
	}
}

func TestSQLiteStore_ClosedRejectsOperations(t *testing.T) {
	s, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	// idempotent
	if err := s.Close(); err != nil {
		t.Errorf("expected idempotent close, got %v", err)
	}

	if err := s.Save(sigbus.New("x", 1)); err != store.ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed from Save, got %v", err)
	}
	if err := s.MarkAcked("x"); err != store.ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed from MarkAcked, got %v", err)
	}
	if _, err := s.GetUnacked(); err != store.ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed from GetUnacked, got %v", err)
	}
}

func TestFromConfig_NoSqlitePathYieldsNoop(t *testing.T) {
	st, err := store.FromConfig(config.New(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.(*store.NoopStore); !ok {
		t.Errorf("expected *NoopStore, got %T", st)
	}
}

func TestFromConfig_SqlitePathYieldsSQLiteStore(t *testing.T) {
	st, err := store.FromConfig(config.New(map[string]any{"sqlitePath": ":memory:"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sq, ok := st.(*store.SQLiteStore)
	if !ok {
		t.Fatalf("expected *SQLiteStore, got %T", st)
	}
	defer sq.Close()
}

func TestFromConfig_DurableFalseYieldsNoopDespitePath(t *testing.T) {
	st, err := store.FromConfig(config.New(map[string]any{
		"sqlitePath": ":memory:",
		"durable":    false,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.(*store.NoopStore); !ok {
		t.Errorf("expected *NoopStore, got %T", st)
	}
}
