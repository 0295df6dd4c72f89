package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/weft/pkg/domain"
)

// StateMarkdown describes the outcome of a run as markdown: status, produced data
// and the execution trace. err is the error the run returned, if any.
func StateMarkdown(title string, state *domain.State, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if state == nil {
		fmt.Fprintf(&sb, "**Status:** `FAILED`\n\n")
		if err != nil {
			fmt.Fprintf(&sb, "> %s\n", err)
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "**Status:** `%s`\n\n", state.Status)
	if err != nil {
		fmt.Fprintf(&sb, "> %s\n\n", err)
	}
	writeState(&sb, state)
	return sb.String()
}

// RunMarkdown is StateMarkdown for a stored run, with its metadata.
func RunMarkdown(run *domain.Run) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", run.ID)
	sb.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Graph | `%s` |\n", run.GraphID)
	fmt.Fprintf(&sb, "| Status | `%s` |\n", run.Status)
	fmt.Fprintf(&sb, "| Started | %s |\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(&sb, "| Finished | %s |\n", run.FinishedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "| Duration | %s |\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(&sb, "| Error | %s |\n", strings.ReplaceAll(run.Error, "|", "\\|"))
	}
	sb.WriteString("\n")
	if run.State != nil {
		writeState(&sb, run.State)
	}
	return sb.String()
}

func writeState(sb *strings.Builder, state *domain.State) {
	if len(state.Data) > 0 {
		sb.WriteString("## Data\n\n| Key | Value |\n|---|---|\n")
		keys := make([]string, 0, len(state.Data))
		for k := range state.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			raw, err := json.Marshal(state.Data[k])
			if err != nil {
				raw = []byte("?")
			}
			fmt.Fprintf(sb, "| `%s` | `%s` |\n", k, raw)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Logs\n\n")
	for i, line := range state.Logs {
		fmt.Fprintf(sb, "%d. %s\n", i+1, line)
	}
}
