package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLintFile(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package q\n\n"+
		"const QGood = `--sql 3c1f7b0e-52a4-4d0c-9a7e-0b6f1d2e4c88\nselect 1;`\n\n"+
		"const QMissing = `select token from integration_tokens;`\n\n"+
		"const QDDL = `create table t (id int);`\n\n"+
		"const notSQL = `hello world`\n")
	writeGo(t, dir, "b.go", "package q\n\n"+
		"const QDup = `--sql 3c1f7b0e-52a4-4d0c-9a7e-0b6f1d2e4c88\nselect 2;`\n")

	l := newLinter()
	if err := l.lintTarget(dir); err != nil {
		t.Fatalf("lintTarget: %v", err)
	}
	got := l.violations()
	if len(got) != 3 {
		t.Fatalf("violations = %+v, want 3", got)
	}
	names := []string{got[0].name, got[1].name, got[2].name}
	if strings.Join(names, ",") != "QMissing,QDDL,QDup" {
		t.Fatalf("names = %v", names)
	}
	if !strings.Contains(got[2].message, "already used by QGood") {
		t.Fatalf("duplicate message = %q", got[2].message)
	}
}

func TestSQLInlinePackageIsClean(t *testing.T) {
	l := newLinter()
	if err := l.lintTarget(filepath.Join("..", "..", "sqlinline")); err != nil {
		t.Fatalf("lintTarget: %v", err)
	}
	if v := l.violations(); len(v) != 0 {
		t.Fatalf("sqlinline violations: %+v", v)
	}
}
