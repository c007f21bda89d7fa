// Command check_boundaries enforces the import rules between the layers of
// each bounded context and keeps the shared kernel free of runtime code.
//
//	go run ./scripts/check_boundaries.go
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "turntable"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists what a layer may import from this module. Third-party
// imports are allowed unless stdlibOnly is set.
type layerRule struct {
	allow      []string
	stdlibOnly bool
	// check runs extra layer-specific rules on top of the allowlist.
	check func(pkg string, importPath string) string
}

func main() {
	var violations []violation
	violations = append(violations, walk("contexts", contextViolations)...)
	violations = append(violations, walk(filepath.Join("internal", "shared"), sharedViolations)...)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})
	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

type fileCheck func(file string, imports []importLine) []violation

type importLine struct {
	path string
	line int
}

func walk(root string, check fileCheck) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		file := filepath.ToSlash(path)
		imports, err := readImports(path)
		if err != nil {
			violations = append(violations, violation{File: file, Line: 1, Rule: "file must parse"})
			return nil
		}
		violations = append(violations, check(file, imports)...)
		return nil
	})
	return violations
}

func readImports(path string) ([]importLine, error) {
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	out := make([]importLine, 0, len(parsed.Imports))
	for _, imp := range parsed.Imports {
		out = append(out, importLine{
			path: strings.Trim(imp.Path.Value, `"`),
			line: fset.Position(imp.Pos()).Line,
		})
	}
	return out, nil
}

// contextViolations checks contexts/<group>/<service>/<layer>/... files.
// Files directly under the service directory are its composition root and
// may wire anything in the service.
func contextViolations(file string, imports []importLine) []violation {
	parts := strings.Split(file, "/")
	if len(parts) < 5 {
		return nil
	}
	service := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[1], parts[2])
	layer := parts[3]
	pkg := service + "/" + strings.Join(parts[3:len(parts)-1], "/")
	rule, ok := rulesFor(service)[layer]
	if !ok {
		return []violation{{File: file, Line: 1, Rule: fmt.Sprintf("unknown layer %q", layer)}}
	}

	var violations []violation
	for _, imp := range imports {
		add := func(reason string) {
			violations = append(violations, violation{File: file, Line: imp.line, Import: imp.path, Rule: reason})
		}
		if hasPrefix(imp.path, modulePath+"/contexts") && !hasPrefix(imp.path, service) {
			add("cross-context imports are forbidden")
			continue
		}
		if isStdlib(imp.path) {
			continue
		}
		if !hasPrefix(imp.path, modulePath) {
			if rule.stdlibOnly {
				add(layer + " may only import the standard library")
			}
			continue
		}
		if !isAllowed(imp.path, rule.allow) {
			add(layer + " import is outside its allowlist")
			continue
		}
		if rule.check != nil {
			if reason := rule.check(pkg, imp.path); reason != "" {
				add(reason)
			}
		}
	}
	return violations
}

func rulesFor(service string) map[string]layerRule {
	shared := modulePath + "/internal/shared"
	return map[string]layerRule{
		"domain": {
			allow:      []string{service + "/domain"},
			stdlibOnly: true,
		},
		"ports": {
			allow:      []string{service + "/domain", shared},
			stdlibOnly: true,
		},
		"application": {
			allow: []string{service + "/application", service + "/domain", service + "/ports", shared},
			check: func(pkg string, importPath string) string {
				// Use cases and workers share the application root and the retry
				// wrapper only. Retry sees the root and nothing beside it.
				if pkg == service+"/application/retry" && hasPrefix(importPath, service+"/application/") {
					return "application/retry must not import other application packages"
				}
				if hasPrefix(importPath, service+"/application/") &&
					!hasPrefix(importPath, service+"/application/retry") &&
					!hasPrefix(pkg, importPath) {
					return "application subpackages may only share the application root and retry"
				}
				return ""
			},
		},
		"transport": {
			allow:      []string{},
			stdlibOnly: true,
		},
		"adapters": {
			allow: []string{
				service + "/adapters",
				service + "/application",
				service + "/domain",
				service + "/ports",
				service + "/transport",
				shared,
			},
			check: func(pkg string, importPath string) string {
				if hasPrefix(importPath, service+"/adapters") && !hasPrefix(importPath, pkg) {
					return "adapters must not import another adapter"
				}
				if hasPrefix(importPath, service+"/application/workers") || hasPrefix(importPath, service+"/application/retry") {
					return "adapters reach the application through use cases only"
				}
				return ""
			},
		},
	}
}

// sharedViolations keeps internal/shared a leaf: it is imported by contexts
// and platform code and must not depend on either.
func sharedViolations(file string, imports []importLine) []violation {
	var violations []violation
	for _, imp := range imports {
		if hasPrefix(imp.path, modulePath) && !hasPrefix(imp.path, modulePath+"/internal/shared") {
			violations = append(violations, violation{
				File:   file,
				Line:   imp.line,
				Import: imp.path,
				Rule:   "shared kernel must not import contexts or platform packages",
			})
		}
	}
	return violations
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowed []string) bool {
	for _, prefix := range allowed {
		if hasPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return first != modulePath && !strings.Contains(first, ".")
}
