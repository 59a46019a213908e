package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInternalImportForbidden(t *testing.T) {
	cases := map[string]bool{
		"plantledger/internal/core": true,
		"internal/logger":           true,
		"plantledger/pkg/domain":    false,
		"github.com/google/uuid":    false,
	}
	for in, want := range cases {
		if got := InternalImportForbidden(in); got != want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", in, got, want)
		}
	}
}

func TestLocalImportsOutside(t *testing.T) {
	forbidden := LocalImportsOutside("plantledger/pkg/domain")
	cases := map[string]bool{
		"plantledger/pkg/domain":    false,
		"plantledger/internal/core": true,
		"plantledger":               true,
		"plantledgerx/pkg":          false,
		"context":                   false,
	}
	for in, want := range cases {
		if got := forbidden(in); got != want {
			t.Fatalf("LocalImportsOutside(%q)=%v want %v", in, got, want)
		}
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.go", "package x\n\nimport (\n\t\"fmt\"\n\t\"plantledger/internal/core\"\n)\n")
	write("a_test.go", "package x\n\nimport \"plantledger/internal/query\"\n")
	write("notes.txt", "import \"plantledger/internal/x\"")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "plantledger/internal/core (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	write("broken.go", "package x\nimport (")
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected read error")
	}
}
