package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FindModule walks up from startDir to the nearest go.mod and returns its
// directory and module path.
func FindModule(startDir string) (modRoot string, modPath string, err error) {
	dir := startDir
	for {
		gomod := filepath.Join(dir, "go.mod")
		if fileExists(gomod) {
			b, rerr := os.ReadFile(gomod)
			if rerr != nil {
				return "", "", rerr
			}
			mod, ok := moduleDirective(string(b))
			if !ok {
				return "", "", fmt.Errorf("source: go.mod missing module directive at %s", filepath.ToSlash(gomod))
			}
			return dir, mod, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", fmt.Errorf("%w starting from %s", ErrNoModule, filepath.ToSlash(startDir))
}

func moduleDirective(gomod string) (string, bool) {
	for _, ln := range strings.Split(gomod, "\n") {
		ln = strings.TrimSpace(ln)
		rest, ok := strings.CutPrefix(ln, "module")
		if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
			continue
		}
		if i := strings.Index(rest, "//"); i >= 0 {
			rest = rest[:i]
		}
		mod := strings.TrimSpace(rest)
		if uq, err := strconv.Unquote(mod); err == nil {
			mod = uq
		}
		return mod, mod != ""
	}
	return "", false
}

// ModuleImportPathForDir joins modPath with dir relative to modRoot.
func ModuleImportPathForDir(modRoot, modPath, dir string) (string, error) {
	rel, err := filepath.Rel(modRoot, dir)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)

	if rel == "." {
		return modPath, nil
	}
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", &OutsideModuleError{Dir: filepath.ToSlash(dir), ModRoot: filepath.ToSlash(modRoot)}
	}
	return modPath + "/" + rel, nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
