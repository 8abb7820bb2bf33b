package trajectory

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// Table is the tabular view of a trajectory: one row per reactor visit
// with columns {stage, t, T, P, X_<species>, Y_<species>} for every
// species in the species union. Cells for species outside a row's
// mechanism hold the NaN sentinel.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Table builds the tabular view.
func (l *Lagrangian) Table() *Table {
	union := l.SpeciesUnion()

	columns := []string{"stage", "t", "T", "P"}
	for _, sp := range union {
		columns = append(columns, "X_"+sp)
	}
	for _, sp := range union {
		columns = append(columns, "Y_"+sp)
	}

	rows := make([][]string, 0, l.Len())
	for _, seg := range l.Segments {
		for _, st := range seg.States {
			row := make([]string, 0, len(columns))
			row = append(row,
				seg.StageID,
				formatCell(seg.TOffset+st.Time),
				formatCell(st.Temperature),
				formatCell(st.Pressure),
			)
			for _, sp := range union {
				row = append(row, fractionCell(seg, st.X, sp))
			}
			for _, sp := range union {
				row = append(row, fractionCell(seg, st.Y, sp))
			}
			rows = append(rows, row)
		}
	}
	return &Table{Columns: columns, Rows: rows}
}

// WriteCSV writes the tabular view as CSV.
func (l *Lagrangian) WriteCSV(w io.Writer) error {
	table := l.Table()
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the tabular view to a file, creating or overwriting it.
func (l *Lagrangian) ExportCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := l.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fractionCell(seg Segment, comp map[string]float64, species string) string {
	if !seg.Mechanism.HasSpecies(species) {
		return "NaN"
	}
	return formatCell(comp[species])
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
