package importer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-quiz-import/internal/reconcile"
)

// Entity names used in reports.
const (
	EntityCourse   = "course"
	EntityModule   = "module"
	EntityQuiz     = "quiz"
	EntityQuestion = "question"
	EntityAnswer   = "answer"
	EntityUser     = "user"
	EntityAttempt  = "attempt"
)

// Counter tallies outcomes for one entity type. Skipped counts rows that
// already existed; a child skipped for a missing parent or as a duplicate
// within the run counts as an error.
type Counter struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Errors    int
}

func (c *Counter) add(o Counter) {
	c.Processed += o.Processed
	c.Created += o.Created
	c.Updated += o.Updated
	c.Skipped += o.Skipped
	c.Errors += o.Errors
}

// Report is the end-of-run summary of a pipeline.
type Report struct {
	Source   string
	Started  time.Time
	Elapsed  time.Duration
	entities []string
	counts   map[string]*Counter
	mu       sync.Mutex
}

// NewReport creates a report listing entities in the given order.
func NewReport(source string, entities ...string) *Report {
	r := &Report{
		Source:   source,
		Started:  time.Now(),
		entities: entities,
		counts:   make(map[string]*Counter, len(entities)),
	}
	for _, e := range entities {
		r.counts[e] = &Counter{}
	}
	return r
}

func (r *Report) counter(entity string) *Counter {
	c, ok := r.counts[entity]
	if !ok {
		c = &Counter{}
		r.counts[entity] = c
		r.entities = append(r.entities, entity)
	}
	return c
}

// Record tallies one reconciliation outcome.
func (r *Report) Record(entity string, res reconcile.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counter(entity)
	c.Processed++
	if err != nil {
		c.Errors++
		return
	}
	switch res.Outcome {
	case reconcile.Created:
		c.Created++
	case reconcile.Updated:
		c.Updated++
	default:
		c.Skipped++
	}
}

// Fail tallies an error that happened before any entity could be processed,
// such as a failed child fetch.
func (r *Report) Fail(entity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter(entity).Errors++
}

// Counter returns a snapshot of the tallies for entity.
func (r *Report) Counter(entity string) Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counts[entity]; ok {
		return *c
	}
	return Counter{}
}

// Totals sums all entities.
func (r *Report) Totals() Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t Counter
	for _, c := range r.counts {
		t.add(*c)
	}
	return t
}

// Finish stamps the elapsed time.
func (r *Report) Finish() {
	r.Elapsed = time.Since(r.Started)
}

// Log writes one structured line per entity.
func (r *Report) Log() {
	for _, e := range r.entities {
		c := r.Counter(e)
		slog.Info("import summary",
			"source", r.Source,
			"entity", e,
			"processed", c.Processed,
			"created", c.Created,
			"updated", c.Updated,
			"skipped", c.Skipped,
			"errors", c.Errors,
		)
	}
	slog.Info("import finished", "source", r.Source, "elapsed", r.Elapsed.Round(time.Millisecond).String())
}

// Print writes the report as a text table.
func (r *Report) Print(w io.Writer) error {
	fmt.Fprintf(w, "Import report (%s), elapsed %s\n", r.Source, r.Elapsed.Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ENTITY\tPROCESSED\tCREATED\tUPDATED\tSKIPPED\tERRORS\t")
	for _, e := range r.entities {
		c := r.Counter(e)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t\n", e, c.Processed, c.Created, c.Updated, c.Skipped, c.Errors)
	}
	t := r.Totals()
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t%d\t%d\t\n", t.Processed, t.Created, t.Updated, t.Skipped, t.Errors)
	return tw.Flush()
}

const reportSheet = "Report"

// WriteXLSX saves the report as a spreadsheet.
func (r *Report) WriteXLSX(path string) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]any{
		{"Source", r.Source},
		{"Started", r.Started.Format(time.RFC3339)},
		{"Elapsed (s)", r.Elapsed.Seconds()},
		{},
		{"Entity", "Processed", "Created", "Updated", "Skipped", "Errors"},
	}
	for _, e := range r.entities {
		c := r.Counter(e)
		rows = append(rows, []any{e, c.Processed, c.Created, c.Updated, c.Skipped, c.Errors})
	}
	t := r.Totals()
	rows = append(rows, []any{"total", t.Processed, t.Created, t.Updated, t.Skipped, t.Errors})

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(reportSheet, "A5", "F5", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	last := len(rows)
	if err := f.SetCellStyle(reportSheet, fmt.Sprintf("A%d", last), fmt.Sprintf("F%d", last), bold); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

// HasErrors reports whether any entity failed.
func (r *Report) HasErrors() bool {
	return r.Totals().Errors > 0
}

// errParent reports whether err is a missing-parent skip.
func errParent(err error) bool {
	return errors.Is(err, reconcile.ErrParentNotFound)
}
