package driver

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"nascdec/pkg/errors"
	"nascdec/pkg/regression"
	"nascdec/pkg/source"
)

// Status is the decompilation outcome of one class.
type Status string

const (
	StatusOK      Status = "OK"
	StatusFailed  Status = "FAILED"
	StatusIgnored Status = "IGNORED"
)

// ClassReport describes one class of a run.
type ClassReport struct {
	Name       string
	Line       int // Line of the class header
	Status     Status
	Regression regression.Status // Empty without a regression store
	Err        errors.DecompileError
	Duration   time.Duration
}

// Failed reports whether the class failed to decompile or its checksum
// did not match.
func (c ClassReport) Failed() bool {
	return c.Status == StatusFailed || c.Regression == regression.StatusFailed
}

// Report is the outcome of a Decompile run, classes in listing order.
type Report struct {
	Source   *source.SourceFile
	Classes  []ClassReport
	Warnings []errors.DecompileError // Tokenizer degradations
	Stats    PoolStats
}

// Errors returns the class errors in listing order.
func (r *Report) Errors() []errors.DecompileError {
	var errs []errors.DecompileError
	for _, c := range r.Classes {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errs
}

// Failed returns the classes that failed to decompile or to match.
func (r *Report) Failed() []ClassReport {
	var failed []ClassReport
	for _, c := range r.Classes {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	return failed
}

// Count returns the number of classes with status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, c := range r.Classes {
		if c.Status == status {
			n++
		}
	}
	return n
}

// PrintClasses writes one progress line per decompiled class, with the
// regression verdict when there is one.
func (r *Report) PrintClasses(w io.Writer) {
	for _, c := range r.Classes {
		if c.Status == StatusIgnored {
			continue
		}
		fmt.Fprintf(w, "Decompile %s", c.Name)
		switch c.Regression {
		case regression.StatusPassed:
			fmt.Fprintf(w, " - %s", color.GreenString(string(c.Regression)))
		case regression.StatusFailed:
			fmt.Fprintf(w, " - %s", color.RedString(string(c.Regression)))
		}
		fmt.Fprintln(w)
	}
}

// PrintSummary writes a table of the classes that need attention, the
// errors with their listing lines and the totals.
func (r *Report) PrintSummary(w io.Writer) {
	if failed := r.Failed(); len(failed) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Class", "Line", "Status", "Regression", "Error"})
		for _, c := range failed {
			msg := ""
			if c.Err != nil {
				msg = c.Err.Kind() + ": " + c.Err.Message()
			}
			table.Append([]string{c.Name, strconv.Itoa(c.Line), colorStatus(string(c.Status)), colorStatus(string(c.Regression)), msg})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	errors.DisplayErrors(w, r.Errors())

	fmt.Fprintf(w, "%d classes: %d ok, %d failed, %d ignored, %d warnings (avg %s)\n",
		len(r.Classes), r.Count(StatusOK), r.Count(StatusFailed), r.Count(StatusIgnored),
		len(r.Warnings), r.Stats.AverageTime)
}

func colorStatus(status string) string {
	switch status {
	case string(StatusOK), string(regression.StatusPassed), string(regression.StatusRecorded):
		return color.GreenString(status)
	case string(StatusFailed):
		return color.RedString(status)
	case string(StatusIgnored), string(regression.StatusSkipped):
		return color.YellowString(status)
	}
	return status
}
