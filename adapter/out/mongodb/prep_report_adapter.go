package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"prep_server/core/domain"
	"prep_server/core/port/out"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Report Adapter
// =============================================================================

const (
	collectionReports = "preparation_reports"

	reportCompressionThreshold = 512 // bytes
)

// ReportAdapter implements out.ReportRepository using MongoDB.
type ReportAdapter struct {
	collection *mongo.Collection
}

var _ out.ReportRepository = (*ReportAdapter)(nil)

// NewReportAdapter creates a new MongoDB report adapter.
func NewReportAdapter(db *mongo.Database) *ReportAdapter {
	return &ReportAdapter{collection: db.Collection(collectionReports)}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *ReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "split", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// reportDocument is the stored form. Queryable fields are top level; the full
// report is kept as (possibly gzipped) JSON.
type reportDocument struct {
	ID          string            `bson:"id"`
	Split       string            `bson:"split"`
	FeatureKey  domain.FeatureKey `bson:"feature_key"`
	CacheHit    bool              `bson:"cache_hit"`
	RowsLoaded  int               `bson:"rows_loaded"`
	RowsEncoded int               `bson:"rows_encoded"`

	Content      []byte `bson:"content"`
	IsCompressed bool   `bson:"is_compressed"`

	CreatedAt time.Time `bson:"created_at"`
}

// Save upserts a report by ID.
func (a *ReportAdapter) Save(ctx context.Context, report *domain.PreparationReport) error {
	doc, err := toDocument(report)
	if err != nil {
		return fmt.Errorf("failed to convert report to document: %w", err)
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := a.collection.ReplaceOne(ctx, bson.M{"id": report.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Latest returns the newest report for split, or nil.
func (a *ReportAdapter) Latest(ctx context.Context, split string) (*domain.PreparationReport, error) {
	var doc reportDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	err := a.collection.FindOne(ctx, bson.M{"split": split}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	return fromDocument(&doc)
}

// List returns the newest reports across splits.
func (a *ReportAdapter) List(ctx context.Context, limit int64) ([]*domain.PreparationReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := a.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}

	reports := make([]*domain.PreparationReport, 0, len(docs))
	for i := range docs {
		r, err := fromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// =============================================================================
// Conversion Helpers
// =============================================================================

func toDocument(report *domain.PreparationReport) (*reportDocument, error) {
	content, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	isCompressed := false
	if len(content) > reportCompressionThreshold {
		content, err = compressReport(content)
		if err != nil {
			return nil, fmt.Errorf("failed to compress report: %w", err)
		}
		isCompressed = true
	}

	return &reportDocument{
		ID:           report.ID,
		Split:        report.Split,
		FeatureKey:   report.FeatureKey,
		CacheHit:     report.CacheHit,
		RowsLoaded:   report.RowsLoaded,
		RowsEncoded:  report.RowsEncoded,
		Content:      content,
		IsCompressed: isCompressed,
		CreatedAt:    report.CreatedAt,
	}, nil
}

func fromDocument(doc *reportDocument) (*domain.PreparationReport, error) {
	content := doc.Content
	if doc.IsCompressed {
		var err error
		content, err = decompressReport(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress report: %w", err)
		}
	}

	report := &domain.PreparationReport{}
	if err := json.Unmarshal(content, report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return report, nil
}

func compressReport(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressReport(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
