// Package pipeline runs one ingestion request end to end:
//
//	normalize -> patterns -> infer -> commit-if-changed -> validate -> store
//
// followed by a schema-change event and metrics. Requests on one Ingester are
// serialized; each store write is its own transaction.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"dynetl/internal/events"
	"dynetl/internal/metrics"
	"dynetl/internal/normalize"
	"dynetl/internal/patterns"
	"dynetl/internal/schema"
	"dynetl/internal/storage"
	"dynetl/internal/validator"
	"dynetl/pkg/records"
)

// Result summarizes one ingested batch.
type Result struct {
	BatchID         string   `json:"batch_id"`
	Source          string   `json:"source,omitempty"`
	Ingested        int      `json:"ingested"`
	SchemaVersion   int      `json:"schema_version"`
	PreviousVersion int      `json:"previous_version"`
	SchemaChanged   bool     `json:"schema_changed"`
	Added           []string `json:"added_fields,omitempty"`
	Removed         []string `json:"removed_fields,omitempty"`
	Valid           int      `json:"valid"`
	WithIssues      int      `json:"with_issues"`
	IngestErrors    int      `json:"ingest_errors"`

	// RecordIDs are the store identifiers in record order.
	RecordIDs []int64 `json:"-"`
}

// Summary renders "N records processed: G valid, I with issues".
func (r Result) Summary() string {
	return validator.Summary{Valid: r.Valid, WithIssues: r.WithIssues}.String()
}

// SchemaMessage describes what happened to the schema version.
func (r Result) SchemaMessage() string {
	switch {
	case r.SchemaChanged && r.PreviousVersion == 0:
		return fmt.Sprintf("New schema version %d created", r.SchemaVersion)
	case r.SchemaChanged:
		return fmt.Sprintf("Schema updated from v%d to v%d", r.PreviousVersion, r.SchemaVersion)
	default:
		return fmt.Sprintf("Schema unchanged at v%d", r.SchemaVersion)
	}
}

// Ingester owns the store and collaborators used by every request.
type Ingester struct {
	mu sync.Mutex

	store     storage.Store
	norm      *normalize.Normalizer
	publisher events.Publisher
	logger    *log.Logger
	job       string
	verbose   bool
	now       func() time.Time
	newID     func() string
}

// Option customizes an Ingester.
type Option func(*Ingester)

// WithPublisher sets the schema-change publisher. Default: events.Nop.
func WithPublisher(p events.Publisher) Option {
	return func(in *Ingester) {
		if p != nil {
			in.publisher = p
		}
	}
}

// WithLogger sets the logger. Default: log.Default().
func WithLogger(l *log.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithJob sets the job label used for metrics.
func WithJob(job string) Option {
	return func(in *Ingester) { in.job = job }
}

// WithVerbose logs one line per record that has quality issues.
func WithVerbose(v bool) Option {
	return func(in *Ingester) { in.verbose = v }
}

// WithClock overrides the time source for _ingested_at and events.
func WithClock(now func() time.Time) Option {
	return func(in *Ingester) { in.now = now }
}

// WithIDGenerator overrides batch ID generation.
func WithIDGenerator(f func() string) Option {
	return func(in *Ingester) { in.newID = f }
}

// New builds an Ingester. A nil Normalizer gets default parser options.
func New(store storage.Store, norm *normalize.Normalizer, opts ...Option) *Ingester {
	if norm == nil {
		norm = normalize.New(normalize.Options{})
	}
	in := &Ingester{
		store:     store,
		norm:      norm,
		publisher: events.Nop{},
		logger:    log.Default(),
		job:       "dynetl",
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Normalizer exposes the normalizer so callers can run the pure parsing step
// concurrently and hand the records to IngestRecords.
func (in *Ingester) Normalizer() *normalize.Normalizer { return in.norm }

// Ingest normalizes data using the format implied by filename and ingests the
// resulting batch.
func (in *Ingester) Ingest(ctx context.Context, filename string, data []byte) (Result, error) {
	start := time.Now()
	recs := in.norm.NormalizeFile(filename, data)
	metrics.RecordStep(in.job, "normalize", nil, time.Since(start))
	return in.IngestRecords(ctx, filename, recs)
}

// IngestRecords runs every step after normalization for one batch. Only store
// failures are returned; malformed input shows up as error records and
// quality issues.
func (in *Ingester) IngestRecords(ctx context.Context, source string, recs []records.Record) (Result, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	res := Result{BatchID: in.newID(), Source: source, Ingested: len(recs)}

	// Pattern results ride alongside the records so inference and validation
	// only ever see user fields.
	found := make([]patterns.Result, len(recs))
	for i, r := range recs {
		found[i] = patterns.ForRecord(r)
		if _, ok := records.IngestError(r); ok {
			res.IngestErrors++
		}
	}

	start := time.Now()
	batch := schema.Infer(recs)
	metrics.RecordStep(in.job, "infer", nil, time.Since(start))

	version, active, err := in.assignVersion(ctx, batch, &res)
	if err != nil {
		return res, err
	}

	start = time.Now()
	now := in.now()
	ingestedAt := storage.FormatTime(now)
	res.RecordIDs = make([]int64, 0, len(recs))
	for i, r := range recs {
		issues := validator.Validate(r, active)
		if clash := overwritten(r); len(clash) > 0 {
			in.logger.Printf("pipeline: batch=%s record=%d overwriting reserved fields %q", res.BatchID, i, clash)
			for _, k := range clash {
				issues = append(issues, fmt.Sprintf("Reserved field overwritten: '%s'", k))
			}
		}
		if len(issues) == 0 {
			res.Valid++
		} else {
			res.WithIssues++
			if in.verbose {
				in.logger.Printf("pipeline: batch=%s record=%d issues=%q", res.BatchID, i, issues)
			}
		}

		payload, err := annotate(r, found[i], version, ingestedAt, issues)
		if err != nil {
			metrics.RecordStep(in.job, "store", err, time.Since(start))
			return res, fmt.Errorf("pipeline: encode record %d: %w", i, err)
		}
		id, err := in.store.Append(ctx, payload, version, now, issues)
		if err != nil {
			metrics.RecordStep(in.job, "store", err, time.Since(start))
			return res, fmt.Errorf("pipeline: append record %d: %w", i, err)
		}
		res.RecordIDs = append(res.RecordIDs, id)
	}
	metrics.RecordStep(in.job, "store", nil, time.Since(start))

	metrics.RecordRow(in.job, "processed", int64(res.Ingested))
	metrics.RecordRow(in.job, "valid", int64(res.Valid))
	metrics.RecordRow(in.job, "with_issues", int64(res.WithIssues))
	metrics.RecordRow(in.job, "ingest_errors", int64(res.IngestErrors))

	if res.SchemaChanged {
		in.publish(ctx, res)
	}

	in.logger.Printf("pipeline: batch=%s file=%s records=%d version=%d changed=%t valid=%d with_issues=%d",
		res.BatchID, source, res.Ingested, res.SchemaVersion, res.SchemaChanged, res.Valid, res.WithIssues)
	return res, nil
}

// assignVersion compares the batch schema with the stored one and commits a
// new version when none exists or the field sets differ. It returns the
// version records are filed under and the schema they are validated against.
func (in *Ingester) assignVersion(ctx context.Context, batch schema.Schema, res *Result) (int, schema.Schema, error) {
	start := time.Now()
	current, stored, err := in.store.CurrentVersion(ctx)
	if err != nil {
		metrics.RecordStep(in.job, "commit", err, time.Since(start))
		return 0, schema.Schema{}, fmt.Errorf("pipeline: current schema: %w", err)
	}
	res.PreviousVersion = current

	if current > 0 && schema.SameFields(stored, batch) {
		res.SchemaVersion = current
		metrics.RecordStep(in.job, "commit", nil, time.Since(start))
		return current, stored, nil
	}

	next, err := in.store.Commit(ctx, batch)
	metrics.RecordStep(in.job, "commit", err, time.Since(start))
	if err != nil {
		return 0, schema.Schema{}, fmt.Errorf("pipeline: commit schema: %w", err)
	}
	res.SchemaVersion = next
	res.SchemaChanged = true
	if current > 0 {
		res.Added, res.Removed = schema.Diff(stored, batch)
	} else {
		res.Added, res.Removed = batch.FieldSet(), []string{}
	}
	metrics.RecordSchemaCommit(in.job, current > 0)
	return next, batch, nil
}

func (in *Ingester) publish(ctx context.Context, res Result) {
	ev := events.SchemaChanged{
		BatchID:    res.BatchID,
		Source:     res.Source,
		OldVersion: res.PreviousVersion,
		NewVersion: res.SchemaVersion,
		Added:      res.Added,
		Removed:    res.Removed,
		At:         in.now(),
	}
	if err := in.publisher.PublishSchemaChange(ctx, ev); err != nil {
		in.logger.Printf("pipeline: batch=%s publish schema change: %v", res.BatchID, err)
	}
}

// overwritten lists, in sorted order, the annotation keys r already carries.
// annotate replaces their values.
func overwritten(r records.Record) []string {
	var out []string
	for _, k := range []string{records.KeyPatterns, records.KeyIngestedAt, records.KeyQualityIssues, records.KeySchemaVersion} {
		if _, ok := r[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// annotate builds the persisted payload: the user fields plus the reserved
// pipeline annotations.
func annotate(r records.Record, p patterns.Result, version int, ingestedAt string, issues []string) ([]byte, error) {
	out := records.Clone(r)
	out[records.KeyPatterns] = p
	out[records.KeySchemaVersion] = version
	out[records.KeyIngestedAt] = ingestedAt
	if issues == nil {
		issues = []string{}
	}
	out[records.KeyQualityIssues] = issues
	return json.Marshal(out)
}
