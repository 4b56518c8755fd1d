package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-attendance/internal/database"
)

var seedCmd = &cobra.Command{
	Use:   "seed <students.yaml>",
	Short: "Write student records into the record store",
	Long: `Load student records from a YAML file keyed by student id and write each
one to the record store, replacing any existing record.

File format:
  "321654":
    name: Murtaza Hassan
    major: Robotics
    Starting_year: 2017
    total_attendance: 7
    standing: G
    year: 4
    Last_attendance_time: "2022-12-11 00:54:34"

Examples:
  face-attendance seed students.yaml
  face-attendance seed students.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Bool("dry-run", false, "Parse and print the records without writing them")
}

func loadSeedFile(path string) (map[string]database.StudentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var records map[string]database.StudentRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("seed file %s contains no students", path)
	}
	return records, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	records, err := loadSeedFile(args[0])
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if mustGetBool(cmd, "dry-run") {
		for _, id := range ids {
			rec := records[id]
			fmt.Printf("%-10s %-25s %-15s attendance=%d last=%s\n",
				id, rec.Name, rec.Major, rec.TotalAttendance, rec.LastAttendanceTime)
		}
		fmt.Printf("\n%d students (dry run, nothing written)\n", len(ids))
		return nil
	}

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStudentStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to record store: %w", err)
	}
	defer store.Close()

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetDescription("Seeding students"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var failed int
	for _, id := range ids {
		if err := store.PutStudent(ctx, id, records[id]); err != nil {
			log.WithError(err).WithField("student_id", id).Error("Failed to write student")
			failed++
		}
		bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("\nCompleted: %d students written, %d errors\n", len(ids)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d students could not be written", failed)
	}
	return nil
}
