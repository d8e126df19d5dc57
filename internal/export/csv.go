// Package export writes simulation traces as CSV.
//
// The layout is one header row (epoch, the concept names in name order,
// delta) followed by one row per epoch. Undefined values are empty cells;
// NaN is written as "NaN" and infinities as "+Inf" and "-Inf".
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/simulation"
)

// CSVWriter streams epochs as CSV rows. It implements simulation.Observer,
// so it can be attached to a controller instead of recording a full trace.
type CSVWriter struct {
	w        *csv.Writer
	concepts []string
	header   bool
	err      error
}

// NewCSVWriter creates a writer for the given concept columns.
func NewCSVWriter(w io.Writer, concepts []string) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), concepts: concepts}
}

// WriteRow writes one epoch. The header is written before the first row.
func (cw *CSVWriter) WriteRow(epoch int, outputs []fcm.Value, delta fcm.Value) error {
	if cw.err != nil {
		return cw.err
	}
	if len(outputs) != len(cw.concepts) {
		return fmt.Errorf("csv row for epoch %d has %d values, want %d", epoch, len(outputs), len(cw.concepts))
	}
	if !cw.header {
		if cw.err = cw.w.Write(headerRow(cw.concepts)); cw.err != nil {
			return cw.err
		}
		cw.header = true
	}

	row := make([]string, 0, len(outputs)+2)
	row = append(row, strconv.Itoa(epoch))
	for _, v := range outputs {
		row = append(row, FormatValue(v))
	}
	row = append(row, FormatValue(delta))
	cw.err = cw.w.Write(row)
	return cw.err
}

// ObserveEpoch writes the map's current outputs. Write errors are kept and
// returned by Flush.
func (cw *CSVWriter) ObserveEpoch(ev simulation.EpochEvent) {
	outputs := make([]fcm.Value, len(cw.concepts))
	for i, name := range cw.concepts {
		if c := ev.Map.Concept(name); c != nil {
			outputs[i] = c.Output()
		}
	}
	_ = cw.WriteRow(ev.Epoch, outputs, ev.Delta)
}

// Flush writes buffered rows and reports the first error encountered.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	if cw.err != nil {
		return cw.err
	}
	return cw.w.Error()
}

// WriteTrace writes a complete trace, including the initial state as
// epoch 0.
func WriteTrace(w io.Writer, tr *simulation.Trace) error {
	cw := NewCSVWriter(w, tr.Concepts)
	if len(tr.Epochs) == 0 {
		if err := cw.w.Write(headerRow(tr.Concepts)); err != nil {
			return err
		}
	}
	for _, s := range tr.Epochs {
		if err := cw.WriteRow(s.Epoch, s.Outputs, s.Delta); err != nil {
			return fmt.Errorf("write epoch %d: %w", s.Epoch, err)
		}
	}
	return cw.Flush()
}

// FormatValue renders a value as a CSV cell.
func FormatValue(v fcm.Value) string {
	f, ok := v.Float()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func headerRow(concepts []string) []string {
	header := make([]string, 0, len(concepts)+2)
	header = append(header, "epoch")
	header = append(header, concepts...)
	return append(header, "delta")
}
