package com

import "testing"

func TestMap(t *testing.T) {
	m := NewMap[Uid, string]()
	if !m.IsEmpty() {
		t.Error("new map should be empty")
	}

	k1, k2 := NewUid(), NewUid()
	m.Put(k1, "a")
	m.Put(k2, "b")

	if m.Len() != 2 {
		t.Errorf("Len() = %v, want 2", m.Len())
	}
	if !m.Has(k1) {
		t.Error("Has(k1) = false")
	}
	if v, err := m.Find(k2); err != nil || v != "b" {
		t.Errorf("Find(k2) = %v, %v", v, err)
	}
	if _, err := m.Find(Uid{}); err != ErrNotFound {
		t.Errorf("zero key lookup = %v, want ErrNotFound", err)
	}

	if got := len(m.List()); got != 2 {
		t.Errorf("List() has %v items, want 2", got)
	}
	n := 0
	m.ForEach(func(string) { n++ })
	if n != 2 {
		t.Errorf("ForEach visited %v items, want 2", n)
	}

	m.RemoveByKey(k1)
	if m.Has(k1) || m.Len() != 1 {
		t.Error("k1 should be gone after removal")
	}
}
