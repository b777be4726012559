package route

import (
	"errors"
	"strings"
	"testing"
)

// buildTable registers the given (kind, pattern) pairs in order and
// freezes the table, failing the test on any error.
func buildTable(t *testing.T, bindings ...Pattern) *MappingTable[string] {
	t.Helper()
	table := NewMappingTable[string]()
	for _, p := range bindings {
		if err := table.Register(p, p.String()); err != nil {
			t.Fatalf("Register(%s) failed: %v", p, err)
		}
	}
	if err := table.Freeze(); err != nil {
		t.Fatalf("Freeze failed: %v", err)
	}
	return table
}

func TestNewPattern_Validation(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		path      string
		expectErr string
	}{
		{"empty path", KindExact, "", "pattern path cannot be empty"},
		{"relative path", KindExact, "a/b", "must be absolute"},
		{"exact with trailing slash", KindExact, "/admin/", "must not end with '/'"},
		{"prefix without trailing slash", KindPrefix, "/static", "must end with '/'"},
		{"exact root ok", KindExact, "/", ""},
		{"prefix root ok", KindPrefix, "/", ""},
		{"valid exact", KindExact, "/a/b", ""},
		{"valid prefix", KindPrefix, "/a/b/", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPattern(tc.kind, tc.path)
			if tc.expectErr == "" {
				if err != nil {
					t.Fatalf("NewPattern(%v, %q) unexpected error: %v", tc.kind, tc.path, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
				t.Fatalf("NewPattern(%v, %q) = %v; want error containing %q", tc.kind, tc.path, err, tc.expectErr)
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("NewPattern error is %T; want *ConfigurationError", err)
			}
		})
	}
}

func TestNewPattern_NormalizesDuplicateSlashes(t *testing.T) {
	p, err := NewPattern(KindPrefix, "//a///b/")
	if err != nil {
		t.Fatalf("NewPattern failed: %v", err)
	}
	if p.Prefix() != "/a/b/" {
		t.Errorf("Expected normalized prefix /a/b/, got %q", p.Prefix())
	}
	if p.Raw() != "//a///b/" {
		t.Errorf("Expected raw pattern preserved, got %q", p.Raw())
	}
}

func TestResolve_ExactBeatsPrefix(t *testing.T) {
	table := buildTable(t,
		MustPattern(KindPrefix, "/a/"),
		MustPattern(KindExact, "/a/b"),
	)

	m, ok := table.Resolve("/a/b")
	if !ok {
		t.Fatal("Expected a match for /a/b")
	}
	if m.Pattern.Kind() != KindExact {
		t.Errorf("Expected exact binding to win, got %s", m.Pattern)
	}
	if m.Remainder != "" {
		t.Errorf("Exact match must have empty remainder, got %q", m.Remainder)
	}
}

func TestResolve_LongestPrefixWins(t *testing.T) {
	table := buildTable(t,
		MustPattern(KindPrefix, "/a/"),
		MustPattern(KindPrefix, "/a/b/"),
	)

	m, ok := table.Resolve("/a/b/c")
	if !ok {
		t.Fatal("Expected a match for /a/b/c")
	}
	if m.Pattern.Prefix() != "/a/b/" {
		t.Errorf("Expected /a/b/ binding, got %s", m.Pattern)
	}
	if m.Remainder != "c" {
		t.Errorf("Expected remainder \"c\", got %q", m.Remainder)
	}
}

func TestRegister_ConflictRejected(t *testing.T) {
	table := NewMappingTable[string]()
	if err := table.Register(MustPattern(KindPrefix, "/a/"), "first"); err != nil {
		t.Fatalf("First Register failed: %v", err)
	}

	err := table.Register(MustPattern(KindPrefix, "/a/"), "second")
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError for duplicate registration, got %v", err)
	}

	// Same path under a different kind is not a conflict.
	if err := table.Register(MustPattern(KindExact, "/a/b"), "exact"); err != nil {
		t.Fatalf("Register of distinct kind failed: %v", err)
	}

	// Normalization is applied before conflict detection.
	err = table.Register(MustPattern(KindPrefix, "//a//"), "normalized dup")
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError for normalized duplicate, got %v", err)
	}
}

func TestFreeze_Invariants(t *testing.T) {
	table := NewMappingTable[string]()
	if err := table.Register(MustPattern(KindExact, "/x"), "x"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if table.Frozen() {
		t.Fatal("Table must not be frozen before Freeze")
	}
	if err := table.Freeze(); err != nil {
		t.Fatalf("Freeze failed: %v", err)
	}
	if !table.Frozen() {
		t.Fatal("Table must be frozen after Freeze")
	}

	var ce *ConfigurationError
	if err := table.Freeze(); !errors.As(err, &ce) {
		t.Errorf("Second Freeze = %v; want ConfigurationError", err)
	}
	if err := table.Register(MustPattern(KindExact, "/y"), "y"); !errors.As(err, &ce) {
		t.Errorf("Register after Freeze = %v; want ConfigurationError", err)
	}
}

func TestResolve_BeforeFreezePanics(t *testing.T) {
	table := NewMappingTable[string]()
	defer func() {
		if recover() == nil {
			t.Error("Expected Resolve on unfrozen table to panic")
		}
	}()
	table.Resolve("/a")
}

func TestResolve_RegistrationOrderTieBreak(t *testing.T) {
	// Two distinct prefixes of equal length: the longest-prefix sort
	// must not reorder them, so the first matching one in registration
	// order wins.
	table := buildTable(t,
		MustPattern(KindPrefix, "/aa/"),
		MustPattern(KindPrefix, "/bb/"),
	)

	m, ok := table.Resolve("/aa/x")
	if !ok || m.Pattern.Prefix() != "/aa/" {
		t.Fatalf("Expected /aa/ binding, got %v (ok=%v)", m.Pattern, ok)
	}
	m, ok = table.Resolve("/bb/x")
	if !ok || m.Pattern.Prefix() != "/bb/" {
		t.Fatalf("Expected /bb/ binding, got %v (ok=%v)", m.Pattern, ok)
	}
}

func TestResolve_EndToEndScenario(t *testing.T) {
	table := NewMappingTable[string]()
	if err := table.Register(MustPattern(KindExact, "/a"), "H1"); err != nil {
		t.Fatalf("Register /a failed: %v", err)
	}
	if err := table.Register(MustPattern(KindPrefix, "/a/"), "H2"); err != nil {
		t.Fatalf("Register /a/ failed: %v", err)
	}
	if err := table.Freeze(); err != nil {
		t.Fatalf("Freeze failed: %v", err)
	}

	m, ok := table.Resolve("/a")
	if !ok || m.Value != "H1" {
		t.Errorf("Resolve(/a) = %v, %v; want H1", m.Value, ok)
	}

	m, ok = table.Resolve("/a/x")
	if !ok || m.Value != "H2" {
		t.Errorf("Resolve(/a/x) = %v, %v; want H2", m.Value, ok)
	}
	if m.Remainder != "x" {
		t.Errorf("Resolve(/a/x) remainder = %q; want \"x\"", m.Remainder)
	}

	if _, ok := table.Resolve("/b"); ok {
		t.Error("Resolve(/b) matched; want no match")
	}
}

func TestMappingTable_Each(t *testing.T) {
	table := buildTable(t,
		MustPattern(KindExact, "/one"),
		MustPattern(KindPrefix, "/two/"),
	)

	var order []string
	table.Each(func(p Pattern, v string) {
		order = append(order, p.Prefix())
	})
	if len(order) != 2 || order[0] != "/one" || order[1] != "/two/" {
		t.Errorf("Each order = %v; want registration order", order)
	}
}
