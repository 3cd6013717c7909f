package runtime

import "testing"

type stubHandler struct{ typ string }

func (h stubHandler) Type() string       { return h.typ }
func (h stubHandler) Run(*Context) error { return nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubHandler{typ: "state_update"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	h, ok := r.Get("state_update")
	if !ok || h.Type() != "state_update" {
		t.Fatalf("lookup failed: ok=%v", ok)
	}
	if _, ok := r.Get("unknown_type"); ok {
		t.Fatal("lookup of unregistered type should miss")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubHandler{typ: "synthesis_run"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(stubHandler{typ: "synthesis_run"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestRegistryRejectsInvalidHandlers(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); err == nil {
		t.Fatal("nil handler should fail")
	}
	if err := r.Register(stubHandler{}); err == nil {
		t.Fatal("empty type should fail")
	}
}
