package core

import "testing"

func TestMemory_GetSet(t *testing.T) {
	m := NewMemory()

	if _, ok := m.Get("missing"); ok {
		t.Error("empty memory should not contain keys")
	}

	m.Set("a", 1)
	m.Set("b", "x")

	if v, ok := m.Get("a"); !ok || v.(int) != 1 {
		t.Fatalf("value not stored: %+v", m)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", m.Len())
	}

	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Error("deleted key should be absent")
	}
}

func TestMemory_TypedHelpers(t *testing.T) {
	m := NewMemory()
	m.Set("count", 7)
	m.Set("label", "monitor")

	if m.Int("count") != 7 {
		t.Errorf("Int returned %d", m.Int("count"))
	}
	if m.Int("label") != 0 {
		t.Error("Int on non-int should be zero")
	}
	if m.Int("missing") != 0 {
		t.Error("Int on missing key should be zero")
	}
	if m.String("label") != "monitor" {
		t.Errorf("String returned %q", m.String("label"))
	}
	if m.String("count") != "" {
		t.Error("String on non-string should be empty")
	}
}
