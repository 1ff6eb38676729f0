package architecture_test

import (
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
)

const modulePath = "aida"

func repoRootDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

// productionGoFiles lists non-test Go files under root.
func productionGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func importPathOf(file string) string {
	rel, err := filepath.Rel(repoRootDir(), filepath.Dir(file))
	if err != nil {
		return ""
	}
	return modulePath + "/" + filepath.ToSlash(rel)
}

func relToRepoRoot(file string) string {
	rel, err := filepath.Rel(repoRootDir(), file)
	if err != nil {
		return file
	}
	return filepath.ToSlash(rel)
}

func hasPathPrefix(value, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}
