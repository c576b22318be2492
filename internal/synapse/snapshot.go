package synapse

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"cerebrum/internal/model"
)

// Snapshot CSV column order is a stable external contract consumed by
// visualization tooling and checkpoint round-trips.
var snapshotHeader = []string{"pre_neuron", "post_neuron", "weight"}

// WriteSnapshotCSV serializes snapshot rows with the exact
// pre_neuron,post_neuron,weight header.
func WriteSnapshotCSV(w io.Writer, rows []model.SynapseRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatUint(r.PreNeuron, 10),
			strconv.FormatUint(r.PostNeuron, 10),
			strconv.FormatFloat(float64(r.Weight), 'g', -1, 32),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSnapshotCSV parses a snapshot written by WriteSnapshotCSV.
func ReadSnapshotCSV(r io.Reader) ([]model.SynapseRow, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	if len(header) != len(snapshotHeader) {
		return nil, fmt.Errorf("snapshot header has %d columns, want %d", len(header), len(snapshotHeader))
	}
	for i, name := range snapshotHeader {
		if header[i] != name {
			return nil, fmt.Errorf("snapshot column %d is %q, want %q", i, header[i], name)
		}
	}
	rows := make([]model.SynapseRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		pre, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse pre_neuron %q: %w", rec[0], err)
		}
		post, err := strconv.ParseUint(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse post_neuron %q: %w", rec[1], err)
		}
		wt, err := strconv.ParseFloat(rec[2], 32)
		if err != nil {
			return nil, fmt.Errorf("parse weight %q: %w", rec[2], err)
		}
		rows = append(rows, model.SynapseRow{PreNeuron: pre, PostNeuron: post, Weight: float32(wt)})
	}
	return rows, nil
}
