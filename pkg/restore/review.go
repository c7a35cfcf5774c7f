package restore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bastiangx/wordmend/internal/utils"
)

var reviewHeader = []string{"original", "choice", "confidence", "left", "right", "candidates"}

// WriteReviewCSV writes rows as CSV with a header line. Candidates are
// joined with a space inside their cell.
func WriteReviewCSV(w io.Writer, rows []ReviewRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reviewHeader); err != nil {
		return fmt.Errorf("failed to write review header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Original,
			row.Choice,
			strconv.FormatFloat(row.Confidence, 'f', 4, 64),
			row.Left,
			row.Right,
			strings.Join(row.Candidates, " "),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write review row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveReviewCSV writes rows to path.
func SaveReviewCSV(path string, rows []ReviewRow) error {
	f, err := utils.CreateFile(path)
	if err != nil {
		return fmt.Errorf("failed to create review file: %w", err)
	}
	if err := WriteReviewCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
