package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
)

// replaced in tests to simulate rename failures
var renameFunc = os.Rename

var vehicleIDRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// safeID reports whether id can be used as a single directory name
func safeID(id string) bool {
	return id != "." && id != ".." && vehicleIDRE.MatchString(id)
}

// writeFileAtomic writes name under dir through a temp file in the same
// directory and a rename, replacing any existing file. On failure the
// previous file is left untouched and the temp file is removed.
func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	// directory fsync is best-effort
	_ = syncDir(dir)
	return nil
}

// replaceDir moves staging to target. An existing target is moved aside
// first and restored if the swap fails.
func replaceDir(staging, target string) error {
	aside := ""
	if _, err := os.Stat(target); err == nil {
		aside = staging + ".old"
		if err := renameFunc(target, aside); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := renameFunc(staging, target); err != nil {
		if aside != "" {
			_ = renameFunc(aside, target)
		}
		return err
	}
	if aside != "" {
		_ = os.RemoveAll(aside)
	}
	_ = syncDir(filepath.Dir(target))
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
