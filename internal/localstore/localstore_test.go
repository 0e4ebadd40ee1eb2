package localstore_test

import (
	"go/build"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/dshills/portsdriver/"

// The wasm entry point must not reach the storage backends: bbolt does not
// build for js/wasm.
func TestWasmImportClosure(t *testing.T) {
	ctx := build.Default
	ctx.GOOS, ctx.GOARCH = "js", "wasm"
	ctx.CgoEnabled = false

	root := filepath.Join("..", "..")
	banned := map[string]bool{
		"go.etcd.io/bbolt":             true,
		"github.com/fsnotify/fsnotify": true,
	}

	seen := make(map[string]bool)
	var visit func(rel string)
	visit = func(rel string) {
		if seen[rel] {
			return
		}
		seen[rel] = true

		pkg, err := ctx.ImportDir(filepath.Join(root, filepath.FromSlash(rel)), 0)
		require.NoError(t, err, rel)
		for _, imp := range pkg.Imports {
			if strings.HasPrefix(imp, modulePath) {
				visit(strings.TrimPrefix(imp, modulePath))
				continue
			}
			assert.False(t, banned[imp], "%s imports %s", rel, imp)
		}
	}
	visit("cmd/portsdriver-wasm")

	assert.True(t, seen["internal/host/browser"])
	assert.True(t, seen["internal/localstore"])
	assert.False(t, seen["internal/storage"], "internal/storage is reachable from the wasm build")
}
