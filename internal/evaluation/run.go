package evaluation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"wmbench/internal/corpus"
	"wmbench/internal/dataset"
)

// Summary counts what a Run produced.
type Summary struct {
	Rows         int
	Skipped      int
	MissingCells int
}

// Run draws rows clips from c without replacement and writes one row per
// clip to sink. A corpus smaller than rows fails before the sink is opened.
// A clip that cannot be decoded is skipped and replaced by another draw.
func (o *Orchestrator) Run(ctx context.Context, c *corpus.Corpus, rows int, sink dataset.Sink) (summary Summary, err error) {
	if rows < 1 {
		return summary, fmt.Errorf("rows must be positive, got %d", rows)
	}
	if err := c.Require(rows); err != nil {
		return summary, err
	}

	if err := sink.Open(ctx, o.Header()); err != nil {
		return summary, fmt.Errorf("open output: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	for summary.Rows < rows {
		path, err := c.Next()
		if err != nil {
			return summary, fmt.Errorf("after %d of %d rows: %w", summary.Rows, rows, err)
		}

		log := o.log.WithFields(logrus.Fields{"row": summary.Rows + 1, "of": rows, "clip": path})
		log.Info("now processing audio file")

		clip, err := corpus.Load(path)
		if err != nil {
			summary.Skipped++
			log.WithError(err).Error("failed to decode clip, drawing another")
			continue
		}
		log.WithField("seconds", clip.Duration).Info("clip loaded")

		row := o.Evaluate(ctx, clip)
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		log.Info("writing results")
		if err := sink.Write(ctx, row); err != nil {
			return summary, fmt.Errorf("write row for %s: %w", path, err)
		}
		summary.Rows++
		for _, cell := range row.Cells {
			if cell.Missing() {
				summary.MissingCells++
			}
		}
	}
	return summary, nil
}
