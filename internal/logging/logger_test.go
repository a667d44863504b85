package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitialize_WritesEnabledCategories(t *testing.T) {
	t.Cleanup(func() { Use(zap.NewNop()) })

	path := filepath.Join(t.TempDir(), "propchat.log")
	err := Initialize(Config{
		Level:      "debug",
		Format:     "json",
		OutputPath: path,
		Categories: map[string]bool{"upload": false},
	})
	require.NoError(t, err)

	Get(CategoryComposer).Info("composer online")
	Get(CategoryUpload).Info("upload should be silent")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "composer online")
	assert.Contains(t, out, `"logger":"composer"`)
	assert.False(t, strings.Contains(out, "upload should be silent"))
}

func TestIsCategoryEnabled_DefaultsToEnabled(t *testing.T) {
	t.Cleanup(func() { Use(zap.NewNop()) })
	require.NoError(t, Initialize(Config{Level: "info", OutputPath: filepath.Join(t.TempDir(), "x.log")}))

	for _, c := range AllCategories {
		assert.True(t, IsCategoryEnabled(c), c)
	}
}

func TestInitialize_RejectsUnknownLevel(t *testing.T) {
	err := Initialize(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestGet_CachesPerCategory(t *testing.T) {
	Use(zap.NewNop())
	assert.Same(t, Get(CategoryTyping), Get(CategoryTyping))
}
