// Package report holds presentation policy for the training log: the fit band of a loss
// and a plain text results table. Nothing in here feeds back into training.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gorgonia/nnviz/network"
	"github.com/pkg/errors"
)

// Band is a coarse classification of a loss value.
type Band byte

const (
	Underfit Band = iota
	BestFit
	Overfit
)

func (b Band) String() string {
	switch b {
	case Underfit:
		return "Underfit"
	case BestFit:
		return "Best fit"
	case Overfit:
		return "Overfit"
	}
	return fmt.Sprintf("Band(%d)", byte(b))
}

// Thresholds separate the bands. A loss above Underfit is underfit, a loss at or below
// Overfit is overfit, and anything in between is the best fit.
type Thresholds struct {
	Underfit float32
	Overfit  float32
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds { return Thresholds{Underfit: 0.01, Overfit: 0.0005} }

func (t Thresholds) IsValid() bool { return t.Overfit >= 0 && t.Overfit < t.Underfit }

// Classify puts loss into its band.
func (t Thresholds) Classify(loss float32) Band {
	switch {
	case loss > t.Underfit:
		return Underfit
	case loss <= t.Overfit:
		return Overfit
	}
	return BestFit
}

// Classify uses the default thresholds.
func Classify(loss float32) Band { return DefaultThresholds().Classify(loss) }

// WriteTable writes records as an aligned table with one row per epoch.
func WriteTable(w io.Writer, records []network.EpochRecord, t Thresholds) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Epoch\tPredicted\tLoss\tFit")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%.3f\t%.4f\t%v\n", r.Epoch, r.Predicted, r.Loss, t.Classify(r.Loss))
	}
	return errors.WithStack(tw.Flush())
}
