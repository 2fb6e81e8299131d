package callgraph

import "testing"

// countingProvider records how often the underlying resolver is consulted.
type countingProvider struct {
	imports int
	members int
	classes int
}

func (c *countingProvider) ResolveImport(file, name string) (Symbol, bool) {
	c.imports++
	if name == "known" {
		return Symbol{Name: name, File: "lib.ts", Target: 7}, true
	}
	return Symbol{}, false
}

func (c *countingProvider) ResolveNamespaceMember(file, ns, member string) (Symbol, bool) {
	c.members++
	return Symbol{}, false
}

func (c *countingProvider) IsNamespaceImport(file, name string) bool { return false }

func (c *countingProvider) ClassByName(file, name string) (ClassInfo, bool) {
	c.classes++
	return ClassInfo{}, false
}

func (c *countingProvider) AllClasses() []ClassInfo             { return nil }
func (c *countingProvider) Subclasses(class string) []ClassInfo { return nil }

func TestCachedProviderMemoizesHits(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, 16)

	for range 5 {
		sym, ok := p.ResolveImport("a.ts", "known")
		if !ok || sym.Target != 7 {
			t.Fatalf("ResolveImport = %+v, ok=%v", sym, ok)
		}
	}
	if inner.imports != 1 {
		t.Errorf("inner consulted %d times, want 1", inner.imports)
	}
}

func TestCachedProviderMemoizesMisses(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, 16)

	for range 5 {
		if _, ok := p.ResolveImport("a.ts", "missing"); ok {
			t.Fatal("missing symbol resolved")
		}
		if _, ok := p.ClassByName("a.ts", "Nope"); ok {
			t.Fatal("missing class resolved")
		}
	}
	if inner.imports != 1 || inner.classes != 1 {
		t.Errorf("inner consulted %d/%d times, want 1/1", inner.imports, inner.classes)
	}
}

func TestCachedProviderDistinguishesKeys(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, 16)

	p.ResolveImport("a.ts", "known")
	p.ResolveImport("b.ts", "known")
	p.ResolveImport("a.ts", "other")

	if inner.imports != 3 {
		t.Errorf("inner consulted %d times, want 3 distinct keys", inner.imports)
	}
}
