package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// entryPoints are the files that make a directory a plugin, in order of
// preference.
var entryPoints = []string{"init.lua", "plugin.lua"}

// Discover expands paths into script files, keeping the given order.
// Directories expand to their scripts sorted by name. A missing path that
// does not name a .lua file is treated as an empty directory; a missing
// script is an error.
func Discover(paths ...string) ([]string, error) {
	var scripts []string
	seen := make(map[string]bool)

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			scripts = append(scripts, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			// A missing directory is an empty plugin directory.
			if errors.Is(err, fs.ErrNotExist) && filepath.Ext(p) != ".lua" {
				continue
			}
			return nil, fmt.Errorf("plugin: %w", err)
		}

		if !info.IsDir() {
			if filepath.Ext(p) != ".lua" {
				return nil, fmt.Errorf("%w: %s", ErrNotAScript, p)
			}
			add(p)
			continue
		}

		found, err := discoverInPath(p)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			add(s)
		}
	}
	return scripts, nil
}

// discoverInPath finds scripts in a single directory.
func discoverInPath(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("plugin: %w", err)
	}

	// ReadDir sorts by name.
	var scripts []string
	for _, entry := range entries {
		path := filepath.Join(basePath, entry.Name())
		if !entry.IsDir() {
			if filepath.Ext(entry.Name()) == ".lua" {
				scripts = append(scripts, path)
			}
			continue
		}

		main, err := entryPoint(path)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, main)
	}
	return scripts, nil
}

// entryPoint returns the script that starts a directory plugin.
func entryPoint(dir string) (string, error) {
	for _, name := range entryPoints {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoEntryPoint, dir)
}
