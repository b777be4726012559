// Package route implements the path-dispatch core: compiled path
// patterns and a freeze-once mapping table resolving request paths to
// bound handler values.
//
// Tables are built single-threaded during server configuration, frozen
// exactly once, and are thereafter safe for unsynchronized concurrent
// reads. There is no locking on the resolve path.
package route

import (
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates how a Pattern matches a request path.
type Kind uint8

const (
	// KindExact matches the full path exactly.
	KindExact Kind = iota
	// KindPrefix matches any path beginning with the mount prefix.
	KindPrefix
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "Exact"
	case KindPrefix:
		return "Prefix"
	default:
		return fmt.Sprintf("UnknownKind(%d)", uint8(k))
	}
}

// ConfigurationError reports an invalid routing setup: conflicting
// registrations, registration after freeze, or double freeze. All
// configuration errors are fatal at startup and never retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "route configuration error: " + e.Msg
}

func configErrorf(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// Pattern is a single compiled matching rule. It is immutable; the raw
// input is normalized at construction time.
type Pattern struct {
	raw    string
	prefix string
	kind   Kind
}

// NewPattern compiles a pattern of the given kind. The path is
// normalized (duplicate slashes collapsed) and validated: it must be
// absolute, exact patterns must not end in '/' (except the root), and
// prefix patterns must end in '/'.
func NewPattern(kind Kind, path string) (Pattern, error) {
	if path == "" {
		return Pattern{}, configErrorf("pattern path cannot be empty")
	}
	if !strings.HasPrefix(path, "/") {
		return Pattern{}, configErrorf("pattern path %q must be absolute", path)
	}

	normalized := collapseSlashes(path)

	switch kind {
	case KindExact:
		if normalized != "/" && strings.HasSuffix(normalized, "/") {
			return Pattern{}, configErrorf("exact pattern %q must not end with '/' unless it is the root path", path)
		}
	case KindPrefix:
		if !strings.HasSuffix(normalized, "/") {
			return Pattern{}, configErrorf("prefix pattern %q must end with '/'", path)
		}
	default:
		return Pattern{}, configErrorf("unknown pattern kind %d", kind)
	}

	return Pattern{raw: path, prefix: normalized, kind: kind}, nil
}

// MustPattern is NewPattern that panics on error, for statically known
// patterns in tests and built-in wiring.
func MustPattern(kind Kind, path string) Pattern {
	p, err := NewPattern(kind, path)
	if err != nil {
		panic(err)
	}
	return p
}

// Raw returns the pattern string as supplied at construction.
func (p Pattern) Raw() string { return p.raw }

// Prefix returns the normalized mount path: the exact path for
// KindExact, the mount prefix (trailing slash included) for KindPrefix.
func (p Pattern) Prefix() string { return p.prefix }

// Kind returns the pattern's match kind.
func (p Pattern) Kind() Kind { return p.kind }

// String returns a short human-readable form used in logs and errors.
func (p Pattern) String() string {
	return fmt.Sprintf("%s(%s)", p.kind, p.prefix)
}

// collapseSlashes removes duplicate slashes so "//a///b" and "/a/b"
// register and resolve identically.
func collapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Mapped is the result of a successful table resolution: the bound
// value plus the unconsumed trailing segment of the request path (empty
// for exact matches), so a handler mounted under a prefix can do its
// own internal routing.
type Mapped[T any] struct {
	Value     T
	Pattern   Pattern
	Remainder string
}

type entry[T any] struct {
	pattern Pattern
	value   T
}

// MappingTable maps path patterns to handler values. It has a
// two-phase lifecycle: Register during configuration, Freeze exactly
// once, then Resolve concurrently with no synchronization.
type MappingTable[T any] struct {
	entries []entry[T]
	frozen  bool

	exactIndex map[string]int // path -> entries index
	prefixIdx  []int          // entries indices, longest prefix first, registration order within a length
}

// NewMappingTable returns an empty, unfrozen table.
func NewMappingTable[T any]() *MappingTable[T] {
	return &MappingTable[T]{exactIndex: make(map[string]int)}
}

// Register inserts a binding. It fails with a ConfigurationError if the
// table is already frozen or if an entry with the same kind and
// normalized path already exists (conflicting registrations are
// detected eagerly, not resolved by precedence).
func (t *MappingTable[T]) Register(pattern Pattern, value T) error {
	if t.frozen {
		return configErrorf("cannot register %s: mapping table is frozen", pattern)
	}
	for _, e := range t.entries {
		if e.pattern.kind == pattern.kind && e.pattern.prefix == pattern.prefix {
			return configErrorf("conflicting registration: %s already bound", pattern)
		}
	}
	t.entries = append(t.entries, entry[T]{pattern: pattern, value: value})
	return nil
}

// Freeze transitions the table to read-only and builds the lookup
// indices. Calling Freeze twice is a programming error and fails with a
// ConfigurationError; it happens exactly once during virtual host
// construction.
func (t *MappingTable[T]) Freeze() error {
	if t.frozen {
		return configErrorf("mapping table is already frozen")
	}

	for i, e := range t.entries {
		switch e.pattern.kind {
		case KindExact:
			t.exactIndex[e.pattern.prefix] = i
		case KindPrefix:
			t.prefixIdx = append(t.prefixIdx, i)
		}
	}
	// Longest mount prefix first; the stable sort preserves
	// registration order among equal lengths, which makes tie-breaking
	// deterministic.
	sort.SliceStable(t.prefixIdx, func(a, b int) bool {
		return len(t.entries[t.prefixIdx[a]].pattern.prefix) > len(t.entries[t.prefixIdx[b]].pattern.prefix)
	})

	t.frozen = true
	return nil
}

// Frozen reports whether the table has been frozen.
func (t *MappingTable[T]) Frozen() bool { return t.frozen }

// Len returns the number of registered bindings.
func (t *MappingTable[T]) Len() int { return len(t.entries) }

// Resolve finds the binding for path. Exact patterns take precedence
// over prefix patterns; among prefix patterns the longest matching
// mount prefix wins. A miss returns ok == false and is an expected,
// common outcome, never an error.
//
// Resolve must only be called on a frozen table; calling it earlier is
// a programming error and panics.
func (t *MappingTable[T]) Resolve(path string) (Mapped[T], bool) {
	if !t.frozen {
		panic("route: Resolve called on an unfrozen MappingTable")
	}

	path = collapseSlashes(path)

	if i, ok := t.exactIndex[path]; ok {
		e := t.entries[i]
		return Mapped[T]{Value: e.value, Pattern: e.pattern}, true
	}

	for _, i := range t.prefixIdx {
		e := t.entries[i]
		if strings.HasPrefix(path, e.pattern.prefix) {
			return Mapped[T]{
				Value:     e.value,
				Pattern:   e.pattern,
				Remainder: path[len(e.pattern.prefix):],
			}, true
		}
	}

	return Mapped[T]{}, false
}

// Each calls fn for every binding in registration order, for
// diagnostic output. Valid on frozen and unfrozen tables.
func (t *MappingTable[T]) Each(fn func(Pattern, T)) {
	for _, e := range t.entries {
		fn(e.pattern, e.value)
	}
}
