package metadata

import (
	"reflect"
	"sync"
	"testing"

	"github.com/conduit-lang/objectmodel/internal/sample"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

func TestRegistry_SameInstance(t *testing.T) {
	r := NewRegistry(nil)

	a, err := r.Lookup(TypeOf[*sample.Coord]())
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	b, err := r.Lookup(TypeOf[*sample.Coord]())
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if a != b {
		t.Error("Expected the same catalog instance")
	}
	if r.Builds() != 1 {
		t.Errorf("builds: got %d, want 1", r.Builds())
	}
	if r.Len() != 1 {
		t.Errorf("entries: got %d, want 1", r.Len())
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry(nil)

	const goroutines = 50
	results := make([]*RoleCatalog, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Lookup(TypeOf[*sample.Item]())
			if err != nil {
				t.Errorf("Lookup failed: %v", err)
				return
			}
			results[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d got a different catalog", i)
		}
	}
	if r.Builds() != 1 {
		t.Errorf("builds: got %d, want 1", r.Builds())
	}
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry(nil)

	a, _ := r.Lookup(TypeOf[*sample.Coord]())
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("entries after reset: got %d", r.Len())
	}
	b, _ := r.Lookup(TypeOf[*sample.Coord]())
	if a == b {
		t.Error("Expected a rebuilt catalog after reset")
	}
}

func TestRegistry_NotObject(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.Lookup(reflect.TypeOf(42)); err == nil {
		t.Error("Expected error for non object type")
	}
	if r.Len() != 0 {
		t.Error("failed lookups must not be cached")
	}
}

func TestLookupObject(t *testing.T) {
	c, err := LookupObject(sample.NewCoord(1, 2))
	if err != nil {
		t.Fatalf("LookupObject failed: %v", err)
	}
	if c.TypeName() != "Coord" {
		t.Errorf("type name: got %s", c.TypeName())
	}

	var nilCoord *sample.Coord
	if _, err := LookupObject(nilCoord); err == nil {
		t.Error("Expected error for typed nil")
	}
	var nilObj object.Object
	if _, err := LookupObject(nilObj); err == nil {
		t.Error("Expected error for nil")
	}
}
