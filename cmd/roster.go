package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/roster"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Inspect the known encodings",
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Long: `List every identity in the encodings artifact with its number of encodings.

Examples:
  face-attendance roster list
  face-attendance roster list --roster=postgres`,
	RunE: runRosterList,
}

var rosterAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Find identities that could be confused with each other",
	Long: `Report pairs of encodings from different identities that are closer than
the acceptance threshold. A face near either encoding of such a pair may be
matched to the wrong student; re-enroll one of them with a better photo.

Examples:
  face-attendance roster audit
  face-attendance roster audit --threshold 0.5`,
	RunE: runRosterAudit,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterListCmd)
	rosterCmd.AddCommand(rosterAuditCmd)

	rosterCmd.PersistentFlags().String("roster", "file", "Known encodings source: file or postgres")
	rosterAuditCmd.Flags().Float64("threshold", 0, "Distance below which a pair is reported (defaults to recognition.threshold)")
}

func runRosterList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	set, err := loadRoster(cmd.Context(), cmd, cfg, log)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, id := range set.IDs() {
		counts[id]++
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("%-20s %s\n", "STUDENT", "ENCODINGS")
	for _, id := range ids {
		fmt.Printf("%-20s %d\n", id, counts[id])
	}
	fmt.Printf("\n%d identities, %d encodings, dimension %d\n", len(ids), set.Len(), set.Dim())
	return nil
}

func runRosterAudit(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	set, err := loadRoster(cmd.Context(), cmd, cfg, log)
	if err != nil {
		return err
	}

	threshold := cfg.Recognition.Threshold
	if flagChanged(cmd, "threshold") {
		threshold = mustGetFloat64(cmd, "threshold")
	}

	conflicts := roster.Audit(set, threshold)
	if len(conflicts) == 0 {
		fmt.Printf("No identities closer than %.2f\n", threshold)
		return nil
	}

	fmt.Printf("%-20s %-20s %s\n", "STUDENT A", "STUDENT B", "DISTANCE")
	for _, c := range conflicts {
		fmt.Printf("%-20s %-20s %.4f\n", c.IDA, c.IDB, c.Distance)
	}
	fmt.Printf("\n%d pairs closer than %.2f\n", len(conflicts), threshold)
	return nil
}
