package nnviz

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/gorgonia/nnviz/network"
	"github.com/pkg/errors"
)

// Statistics is the per-epoch training log of a run. Records are appended in epoch order and never modified.
type Statistics struct {
	records []network.EpochRecord
}

func makeStatistics() Statistics {
	return Statistics{
		records: make([]network.EpochRecord, 0, 16),
	}
}

func (s *Statistics) update(epoch int, tr network.Trace) {
	s.records = append(s.records, network.EpochRecord{
		Epoch:     epoch,
		Predicted: tr.Predicted,
		Loss:      tr.Loss,
	})
}

func (s *Statistics) reset() { s.records = s.records[:0] }

// Records returns a copy of the log.
func (s *Statistics) Records() []network.EpochRecord {
	retVal := make([]network.EpochRecord, len(s.records))
	copy(retVal, s.records)
	return retVal
}

// Latest returns the most recent record, if any.
func (s *Statistics) Latest() (network.EpochRecord, bool) {
	if len(s.records) == 0 {
		return network.EpochRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

// WriteCSV writes the log as CSV with a header row.
func (s *Statistics) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"epoch", "predicted", "loss"}); err != nil {
		return errors.WithStack(err)
	}
	records := make([][]string, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, []string{
			strconv.Itoa(r.Epoch),
			strconv.FormatFloat(float64(r.Predicted), 'f', 6, 32),
			strconv.FormatFloat(float64(r.Loss), 'f', 6, 32),
		})
	}
	if err := cw.WriteAll(records); err != nil {
		return errors.WithStack(err)
	}
	cw.Flush()
	return errors.WithStack(cw.Error())
}

// Dump writes the log into filename.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return s.WriteCSV(f)
}
