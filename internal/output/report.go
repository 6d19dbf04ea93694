package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/torosent/cosweep/internal/metrics"
)

// maxListedFailures caps the failed-trial listing in the text report.
const maxListedFailures = 20

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Sweep Results ---")
	fmt.Fprintf(w, "Planned:           %d\n", stats.Planned)
	fmt.Fprintf(w, "Invocations:       %d\n", stats.Total)
	fmt.Fprintf(w, "Succeeded:         %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Elapsed:           %s\n", stats.Elapsed)
	fmt.Fprintln(w, "\nInvocation Duration:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinDuration)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxDuration)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanDuration)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Duration)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Duration)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Duration)

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nFailures by Reason:")
		reasons := make([]string, 0, len(stats.Errors))
		for reason := range stats.Errors {
			reasons = append(reasons, reason)
		}
		sort.Slice(reasons, func(i, j int) bool {
			if stats.Errors[reasons[i]] != stats.Errors[reasons[j]] {
				return stats.Errors[reasons[i]] > stats.Errors[reasons[j]]
			}
			return reasons[i] < reasons[j]
		})
		for _, reason := range reasons {
			fmt.Fprintf(w, "  - %s: %d\n", reason, stats.Errors[reason])
		}
	}

	if len(stats.FailedTrials) > 0 {
		fmt.Fprintln(w, "\nFailed Trials:")
		for i, ft := range stats.FailedTrials {
			if i == maxListedFailures {
				fmt.Fprintf(w, "  ... and %d more\n", len(stats.FailedTrials)-maxListedFailures)
				break
			}
			fmt.Fprintf(w, "  - outer=%d inner=%d: %s\n", ft.Outer, ft.Inner, ft.Reason)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
