// Package reports renders pedigree analysis results as downloadable
// artifacts and stores them in a blob store.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"herdbook/internal/blob"
	"herdbook/pkg/domain"
)

// Kind names a report family; it is also the key segment artifacts are
// stored under.
type Kind string

// Report kinds.
const (
	KindRecommendations Kind = "recommendations"
	KindSeasonal        Kind = "seasonal"
)

// Format is the encoding of one artifact.
type Format string

// Supported artifact formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

func (f Format) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// KeyPrefix is the blob prefix every report artifact lives under.
const KeyPrefix = "reports/"

// Artifact is one stored rendering of a report.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record describes a completed export.
type Record struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Artifacts  []Artifact        `json:"artifacts"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Exporter writes reports into a blob store. Artifact keys are
// reports/<kind>/<id>.<format>.
type Exporter struct {
	store blob.Store
	now   func() time.Time
	newID func() string
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithNow overrides the clock used to stamp reports.
func WithNow(fn func() time.Time) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.now = fn
		}
	}
}

// WithIDGenerator overrides report ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewExporter constructs an exporter over store.
func NewExporter(store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type recommendationDocument struct {
	ID              string                          `json:"id"`
	Kind            Kind                            `json:"kind"`
	GeneratedAt     time.Time                       `json:"generated_at"`
	Parameters      map[string]string               `json:"parameters,omitempty"`
	Recommendations []domain.BreedingRecommendation `json:"recommendations"`
}

type seasonalDocument struct {
	ID          string                  `json:"id"`
	Kind        Kind                    `json:"kind"`
	GeneratedAt time.Time               `json:"generated_at"`
	Parameters  map[string]string       `json:"parameters,omitempty"`
	Analysis    domain.SeasonalAnalysis `json:"analysis"`
}

var recommendationHeader = []string{"dam_id", "dam_name", "sire_id", "sire_name", "species", "score", "relationship"}

// ExportRecommendations stores a recommendation list as JSON and CSV.
func (e *Exporter) ExportRecommendations(ctx context.Context, recs []domain.BreedingRecommendation, params map[string]string) (Record, error) {
	if recs == nil {
		recs = []domain.BreedingRecommendation{}
	}
	id, now := e.newID(), e.now()
	doc, err := json.MarshalIndent(recommendationDocument{
		ID:              id,
		Kind:            KindRecommendations,
		GeneratedAt:     now,
		Parameters:      params,
		Recommendations: recs,
	}, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("encode recommendations: %w", err)
	}
	table, err := recommendationsCSV(recs)
	if err != nil {
		return Record{}, err
	}
	return e.write(ctx, KindRecommendations, id, now, params, map[Format][]byte{
		FormatJSON: doc,
		FormatCSV:  table,
	})
}

// ExportSeasonal stores a seasonal analysis as JSON.
func (e *Exporter) ExportSeasonal(ctx context.Context, analysis domain.SeasonalAnalysis, params map[string]string) (Record, error) {
	id, now := e.newID(), e.now()
	doc, err := json.MarshalIndent(seasonalDocument{
		ID:          id,
		Kind:        KindSeasonal,
		GeneratedAt: now,
		Parameters:  params,
		Analysis:    analysis,
	}, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("encode seasonal analysis: %w", err)
	}
	return e.write(ctx, KindSeasonal, id, now, params, map[Format][]byte{FormatJSON: doc})
}

// List returns the stored artifacts of kind, or of every kind when kind is
// empty.
func (e *Exporter) List(ctx context.Context, kind Kind) ([]blob.Info, error) {
	prefix := KeyPrefix
	if kind != "" {
		prefix += string(kind) + "/"
	}
	return e.store.List(ctx, prefix)
}

// Key returns the blob key of a report artifact.
func Key(kind Kind, id string, format Format) string {
	return path.Join("reports", string(kind), id+"."+string(format))
}

func (e *Exporter) write(ctx context.Context, kind Kind, id string, now time.Time, params map[string]string, payloads map[Format][]byte) (Record, error) {
	record := Record{ID: id, Kind: kind, Parameters: params, CreatedAt: now}
	for _, format := range []Format{FormatJSON, FormatCSV} {
		payload, ok := payloads[format]
		if !ok {
			continue
		}
		key := Key(kind, id, format)
		info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: format.contentType(),
			Metadata:    map[string]string{"report-id": id, "report-kind": string(kind)},
		})
		if err != nil {
			e.rollback(record.Artifacts)
			return Record{}, fmt.Errorf("store %s artifact: %w", format, err)
		}
		artifact := Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: format.contentType(),
			SizeBytes:   info.Size,
			ETag:        info.ETag,
			CreatedAt:   now,
		}
		url, err := e.store.PresignURL(ctx, key, blob.SignedURLOptions{})
		switch {
		case err == nil:
			artifact.URL = url
		case !errors.Is(err, blob.ErrUnsupported):
			e.rollback(append(record.Artifacts, artifact))
			return Record{}, fmt.Errorf("sign %s artifact: %w", format, err)
		}
		record.Artifacts = append(record.Artifacts, artifact)
	}
	return record, nil
}

// rollback removes artifacts already written for a failed export so a
// report is either complete or absent.
func (e *Exporter) rollback(artifacts []Artifact) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, a := range artifacts {
		_, _ = e.store.Delete(ctx, a.Key)
	}
}

// csvText quotes a cell that a spreadsheet would otherwise evaluate as a
// formula.
func csvText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func recommendationsCSV(recs []domain.BreedingRecommendation) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(recommendationHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range recs {
		row := []string{
			csvText(r.DamID),
			csvText(r.DamName),
			csvText(r.SireID),
			csvText(r.SireName),
			csvText(r.Species),
			strconv.FormatFloat(r.Score, 'f', 4, 64),
			string(r.Verdict.Type),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
