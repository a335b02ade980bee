package casegen

import (
	"regexp"
	"strings"
)

// SplitTarget splits "github.com/acme/geo.Area" into the import path
// "github.com/acme/geo" and the function name "Area".
func SplitTarget(target string) (importPath, name string, ok bool) {
	slash := strings.LastIndex(target, "/")
	dot := strings.Index(target[slash+1:], ".")
	if dot < 0 {
		return "", "", false
	}
	dot += slash + 1
	importPath, name = target[:dot], target[dot+1:]
	if importPath == "" || name == "" {
		return "", "", false
	}
	return importPath, name, true
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// PackageName guesses the package name of an import path: its last
// element, skipping a major version suffix, with characters that cannot
// appear in an identifier replaced by underscores.
func PackageName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if majorVersion.MatchString(name) && len(elems) > 1 {
		name = elems[len(elems)-2]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// TestName returns the name of the generated test for a function.
func TestName(fn string) string {
	return "TestTead" + strings.ToUpper(fn[:1]) + fn[1:]
}
