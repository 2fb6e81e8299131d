package callgraph

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

type importKey struct {
	file string
	name string
}

type memberKey struct {
	file   string
	ns     string
	member string
}

type symbolResult struct {
	sym Symbol
	ok  bool
}

type classResult struct {
	info ClassInfo
	ok   bool
}

// CachedProvider memoizes symbol resolution behind bounded LRU caches.
// Alias-chain resolution walks the module graph on every query; the same
// (file, name) pairs recur across thousands of call sites, so the memo
// pays for itself quickly on large trees.
type CachedProvider struct {
	inner   SymbolProvider
	imports *lru.Cache[importKey, symbolResult]
	members *lru.Cache[memberKey, symbolResult]
	classes *lru.Cache[importKey, classResult]
}

// DefaultSymbolCacheSize bounds each memo cache when no size is configured.
const DefaultSymbolCacheSize = 4096

// NewCachedProvider wraps a provider with memoization. size <= 0 uses
// DefaultSymbolCacheSize.
func NewCachedProvider(inner SymbolProvider, size int) *CachedProvider {
	if size <= 0 {
		size = DefaultSymbolCacheSize
	}
	// lru.New only fails on size <= 0, which is excluded above.
	imports, _ := lru.New[importKey, symbolResult](size)
	members, _ := lru.New[memberKey, symbolResult](size)
	classes, _ := lru.New[importKey, classResult](size)
	return &CachedProvider{
		inner:   inner,
		imports: imports,
		members: members,
		classes: classes,
	}
}

// ResolveImport implements SymbolProvider.
func (c *CachedProvider) ResolveImport(file, localName string) (Symbol, bool) {
	key := importKey{file: file, name: localName}
	if cached, ok := c.imports.Get(key); ok {
		return cached.sym, cached.ok
	}
	sym, ok := c.inner.ResolveImport(file, localName)
	c.imports.Add(key, symbolResult{sym: sym, ok: ok})
	return sym, ok
}

// ResolveNamespaceMember implements SymbolProvider.
func (c *CachedProvider) ResolveNamespaceMember(file, ns, member string) (Symbol, bool) {
	key := memberKey{file: file, ns: ns, member: member}
	if cached, ok := c.members.Get(key); ok {
		return cached.sym, cached.ok
	}
	sym, ok := c.inner.ResolveNamespaceMember(file, ns, member)
	c.members.Add(key, symbolResult{sym: sym, ok: ok})
	return sym, ok
}

// IsNamespaceImport implements SymbolProvider.
func (c *CachedProvider) IsNamespaceImport(file, name string) bool {
	return c.inner.IsNamespaceImport(file, name)
}

// ClassByName implements SymbolProvider.
func (c *CachedProvider) ClassByName(file, name string) (ClassInfo, bool) {
	key := importKey{file: file, name: name}
	if cached, ok := c.classes.Get(key); ok {
		return cached.info, cached.ok
	}
	info, ok := c.inner.ClassByName(file, name)
	c.classes.Add(key, classResult{info: info, ok: ok})
	return info, ok
}

// AllClasses implements SymbolProvider.
func (c *CachedProvider) AllClasses() []ClassInfo {
	return c.inner.AllClasses()
}

// Subclasses implements SymbolProvider.
func (c *CachedProvider) Subclasses(class string) []ClassInfo {
	return c.inner.Subclasses(class)
}

var _ SymbolProvider = (*CachedProvider)(nil)
