package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) {
	r.msg = format
	if len(args) > 1 {
		r.msg = args[1].(string)
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		pred func(string) bool
		in   string
		want bool
	}{
		{InfraImportForbidden, "genesim/internal/infra/persistence/sqlite", true},
		{InfraImportForbidden, "genesim/internal/blob", true},
		{InfraImportForbidden, "genesim/internal/blob/core", false},
		{InternalImportForbidden, "genesim/internal/genetics", true},
		{InternalImportForbidden, "genesim/pkg/domain", false},
		{OrchestrationImportForbidden, "genesim/internal/core", true},
		{OrchestrationImportForbidden, "genesim/internal/cycle", true},
		{OrchestrationImportForbidden, "genesim/internal/creature", false},
		{OrchestrationImportForbidden, "genesim/internal/infra/blob/s3", true},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("predicate(%q)=%v want %v", c.in, got, c.want)
		}
	}
	either := AnyOf(func(p string) bool { return p == "a" }, func(p string) bool { return p == "b" })
	if !either("b") || either("c") {
		t.Fatal("AnyOf mismatch")
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"genesim/internal/infra/blob/fs\"\n)\nvar _ = fmt.Sprint\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"genesim/internal/infra/blob/s3\"\n")
	writeFile(t, dir, "notes.txt", "import \"genesim/internal/infra\"")
	if err := os.Mkdir(filepath.Join(dir, "sub.go"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "genesim/internal/infra/blob/fs (in a.go)" {
		t.Fatalf("violations = %v", viols)
	}

	var r recorder
	failIfDirectViolations(&r, "engine stays storage free", viols)
	if !strings.Contains(r.msg, "blob/fs") {
		t.Fatalf("failure message %q", r.msg)
	}
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InfraImportForbidden); err == nil {
		t.Fatal("expected error for missing dir")
	}
	dir := t.TempDir()
	writeFile(t, dir, "bad.go", "package tmp\nimport (\n")
	if _, err := directImportViolations(dir, InfraImportForbidden); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.go", "package tmp\nimport \"genesim/pkg/domain\"\nvar _ domain.Sex\n")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "none")
}
