package repo_test

import (
	"testing"

	"github.com/hamed0406/playlistchecker/internal/repo"
	"github.com/hamed0406/playlistchecker/internal/repo/memory"
	pg "github.com/hamed0406/playlistchecker/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.RecordStore = memory.New()
	var _ repo.RunStore = memory.New()
	var _ repo.AlertStore = memory.New()

	var _ repo.RecordStore = (*pg.Store)(nil)
	var _ repo.RunStore = (*pg.Store)(nil)
	var _ repo.AlertStore = (*pg.Store)(nil)
}
