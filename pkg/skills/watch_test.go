package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherClearsCacheOnChange(t *testing.T) {
	root := t.TempDir()
	skillDir := writeSkill(t, root, "prd", prdSkill)

	store := newCountingStore()
	svc, _ := newTestService(store, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(root, svc)
	require.NoError(t, err)
	defer w.Close()
	go w.Run(ctx)

	_, err = svc.DiscoverSkillMetadata(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, store.discoverCalls.Load())

	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("---\nname: PRD Writer\ndescription: edited\n---\n"), 0o644))

	assert.Eventually(t, func() bool {
		_, err := svc.DiscoverSkillMetadata(ctx)
		return err == nil && store.discoverCalls.Load() >= 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherMissingRoot(t *testing.T) {
	svc, _ := newTestService(newCountingStore(), time.Hour)
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), svc)
	assert.Error(t, err)
}
