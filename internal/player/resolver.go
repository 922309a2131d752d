// SPDX-License-Identifier: MIT

package player

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// checkDevRepo verifies the configured dev repository exists and is a
// directory. The npm launch itself surfaces everything else.
func checkDevRepo(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return nil
}

// resolveHelper locates the packaged helper executable. Bundled locations
// win over PATH so a deployment always runs the helper it shipped with:
// helpers/<name> next to the daemon binary, then <name> next to it, then
// the environment PATH.
func resolveHelper(name string) (string, error) {
	if name == "" {
		return "", ErrHelperNotFound
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		for _, candidate := range []string{
			filepath.Join(exeDir, "helpers", name),
			filepath.Join(exeDir, name),
		} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s", ErrHelperNotFound, name)
}
