package sink

import (
	"encoding/csv"
	"fmt"
	"os"

	"eval-batcher/internal/core/results"
)

// WriteCSV writes a header row followed by one row per evaluation,
// truncating any existing file.
func WriteCSV(path string, headers []string, evals []results.Evaluation) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating csv %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}
	for _, e := range evals {
		if err := w.Write(e.Row()); err != nil {
			return fmt.Errorf("error writing csv row for %q: %w", e.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error flushing csv %s: %w", path, err)
	}

	return f.Close()
}
