package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hamed0406/playlistchecker/internal/domain"
)

// RunSummary formats the message sent after a playlist run.
func RunSummary(run *domain.Run, byReason map[string]int) (title, text string) {
	title = "📺 Playlist check finished"
	if run.Error != "" {
		title = "⚠️ Playlist check finished with errors"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", run.ID)
	fmt.Fprintf(&b, "Playlists: %d\n", len(run.Playlists))
	fmt.Fprintf(&b, "Channels: %d (passed %d, failed %d)\n", run.Channels, run.Passed, run.Failed)

	reasons := make([]string, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(&b, "  %s: %d\n", r, byReason[r])
	}
	if len(run.Files) > 0 {
		fmt.Fprintf(&b, "Files: %s\n", strings.Join(run.Files, ", "))
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}
	fmt.Fprintf(&b, "Took: %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	return title, b.String()
}
