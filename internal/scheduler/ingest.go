package scheduler

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/seed"
)

// IngestFailure is one URI that could not be stored.
type IngestFailure struct {
	URI model.OnionURI
	Err error
}

// IngestReport summarizes one Ingest call.
type IngestReport struct {
	// Cells is the number of seed cells scanned.
	Cells int

	// Extracted is the number of URI matches, duplicates included.
	Extracted int

	// Duplicates is the number of matches already seen earlier in the call.
	Duplicates int

	// Upserted is the number of distinct URIs stored.
	Upserted int

	// Failures lists the URIs whose upsert failed, in input order.
	Failures []IngestFailure

	errs *multierror.Error
}

// Err returns every failure as one error, or nil if there were none.
func (r *IngestReport) Err() error {
	return r.errs.ErrorOrNil()
}

func (r *IngestReport) fail(uri model.OnionURI, err error) {
	r.Failures = append(r.Failures, IngestFailure{URI: uri, Err: err})
	r.errs = multierror.Append(r.errs, fmt.Errorf("%s: %w", uri, err))
}

// Ingest extracts onion URIs from every cell of every group, in order, and
// upserts each distinct one as a never-attempted Location. A failed upsert
// is logged and recorded in the report; ingestion carries on with the next
// URI. Ingest stops early only when ctx is done.
//
// Re-seeding a Location that was already crawled puts it back in the
// pending set but keeps its lastSuccessfulAt.
func (s *Scheduler) Ingest(ctx context.Context, groups [][]string) *IngestReport {
	report := &IngestReport{}
	seen := make(map[string]struct{})

	for _, group := range groups {
		for _, cell := range group {
			report.Cells++

			for _, uri := range seed.Extract(cell) {
				report.Extracted++

				key := uri.String()
				if _, dup := seen[key]; dup {
					report.Duplicates++
					continue
				}
				seen[key] = struct{}{}

				if err := ctx.Err(); err != nil {
					report.errs = multierror.Append(report.errs, err)
					return report
				}

				_, _, err := s.queue.UpsertLocation(ctx, uri.BaseURL(), uri.Path(), model.NeverScraped, false)
				if err != nil {
					s.logger.Error("failed to insert seed",
						"host", uri.BaseURL(),
						"path", uri.Path(),
						"error", err,
					)
					s.metrics.RecordIngestError()
					report.fail(uri, err)
					continue
				}
				report.Upserted++
			}
		}
	}

	s.metrics.RecordSeeded(report.Upserted)
	s.logger.Info("seed ingestion finished",
		"cells", report.Cells,
		"extracted", report.Extracted,
		"upserted", report.Upserted,
		"failed", len(report.Failures),
	)
	return report
}
