package service

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Core packages must not reach into the delivery or adapter layers.
func TestCoreImportsStayInCore(t *testing.T) {
	forbidden := []string{
		"github.com/carelink/portal-auth/internal/api",
		"github.com/carelink/portal-auth/internal/infrastructure",
	}

	for _, dir := range []string{".", "../domain", "../ports"} {
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		if err != nil {
			t.Fatalf("glob %s: %v", dir, err)
		}
		for _, file := range files {
			f, err := parser.ParseFile(token.NewFileSet(), file, nil, parser.ImportsOnly)
			if err != nil {
				t.Fatalf("parse %s: %v", file, err)
			}
			for _, imp := range f.Imports {
				path, _ := strconv.Unquote(imp.Path.Value)
				for _, prefix := range forbidden {
					if path == prefix || strings.HasPrefix(path, prefix+"/") {
						t.Errorf("%s imports %s", file, path)
					}
				}
			}
		}
	}
}
