package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rfq-tracker/internal/rfq"
)

const (
	collProjects    = "projects"
	collSuppliers   = "suppliers"
	collSubmissions = "submissions"
	collCrawlRuns   = "crawl_runs"
)

// MongoStore implements rfq.Store on MongoDB, using the collection layout
// the dashboards read.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri, verifies the server is reachable and
// ensures the indexes exist.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(dbName)}
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the uniqueness constraints and query indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		collProjects: {
			{Keys: bson.D{{Key: "project_number", Value: 1}}, Options: unique},
		},
		collSuppliers: {
			{Keys: bson.D{{Key: "project_number", Value: 1}, {Key: "supplier_name", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "partner_type", Value: 1}}},
			{Keys: bson.D{{Key: "project_number", Value: 1}, {Key: "partner_type", Value: 1}}},
		},
		collSubmissions: {
			{Keys: bson.D{
				{Key: "project_number", Value: 1}, {Key: "supplier_name", Value: 1},
				{Key: "folder_name", Value: 1}, {Key: "content_hash", Value: 1},
			}, Options: unique},
			{Keys: bson.D{{Key: "project_number", Value: 1}, {Key: "supplier_name", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{
				{Key: "project_number", Value: 1}, {Key: "supplier_name", Value: 1},
				{Key: "folder_name", Value: 1}, {Key: "date", Value: -1},
			}},
			{Keys: bson.D{{Key: "partner_type", Value: 1}}},
			{Keys: bson.D{{Key: "project_number", Value: 1}, {Key: "partner_type", Value: 1}}},
			{Keys: bson.D{{Key: "project_number", Value: 1}, {Key: "partner_type", Value: 1}, {Key: "type", Value: 1}}},
		},
		collCrawlRuns: {
			{Keys: bson.D{{Key: "started_at", Value: -1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) UpsertProject(ctx context.Context, p *rfq.Project) error {
	doc := *p
	doc.LastScanned = doc.LastScanned.UTC()
	_, err := s.db.Collection(collProjects).ReplaceOne(ctx,
		bson.M{"project_number": p.ProjectNumber}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting project: %w", err)
	}
	return nil
}

// UpsertSuppliers $sets each supplier document, so fields the crawler does not
// produce, such as a legacy category, survive.
func (s *MongoStore) UpsertSuppliers(ctx context.Context, suppliers []rfq.Supplier) error {
	if len(suppliers) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(suppliers))
	for _, sup := range suppliers {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"project_number": sup.ProjectNumber, "supplier_name": sup.SupplierName}).
			SetUpdate(bson.M{"$set": sup}).
			SetUpsert(true))
	}
	if _, err := s.db.Collection(collSuppliers).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("upserting suppliers: %w", err)
	}
	return nil
}

// FindSubmission only decodes the identifying fields, so documents written by
// older tools with differently typed ids or dates are still found.
func (s *MongoStore) FindSubmission(ctx context.Context, key rfq.SubmissionKey) (*rfq.Submission, error) {
	var doc struct {
		ID bson.RawValue `bson:"_id"`
	}
	err := s.db.Collection(collSubmissions).FindOne(ctx, bson.M{
		"project_number": key.ProjectNumber,
		"supplier_name":  key.SupplierName,
		"folder_name":    key.FolderName,
		"content_hash":   key.ContentHash,
	}, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding submission: %w", err)
	}

	return &rfq.Submission{
		ID:            idString(doc.ID),
		ProjectNumber: key.ProjectNumber,
		SupplierName:  key.SupplierName,
		FolderName:    key.FolderName,
		ContentHash:   key.ContentHash,
	}, nil
}

func (s *MongoStore) InsertSubmission(ctx context.Context, sub *rfq.Submission) error {
	doc := *sub
	doc.Files = nonNilFiles(doc.Files)
	doc.Date = doc.Date.UTC()
	doc.FirstSeen = doc.FirstSeen.UTC()
	if _, err := s.db.Collection(collSubmissions).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("inserting submission: %w", rfq.ErrDuplicateSubmission)
		}
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

func (s *MongoStore) TouchSubmission(ctx context.Context, id string, checked time.Time) error {
	res, err := s.db.Collection(collSubmissions).UpdateOne(ctx, idFilter(id),
		bson.M{"$set": bson.M{"last_checked": checked.UTC()}})
	if err != nil {
		return fmt.Errorf("touching submission: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

func (s *MongoStore) CreateCrawlRun(ctx context.Context, run *rfq.CrawlRun) error {
	if _, err := s.db.Collection(collCrawlRuns).InsertOne(ctx, run); err != nil {
		return fmt.Errorf("creating crawl run: %w", err)
	}
	return nil
}

func (s *MongoStore) FinishCrawlRun(ctx context.Context, run *rfq.CrawlRun) error {
	if _, err := s.db.Collection(collCrawlRuns).ReplaceOne(ctx, bson.M{"_id": run.ID}, run); err != nil {
		return fmt.Errorf("finishing crawl run: %w", err)
	}
	return nil
}

func (s *MongoStore) ListCrawlRuns(ctx context.Context, limit int) ([]*rfq.CrawlRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.db.Collection(collCrawlRuns).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing crawl runs: %w", err)
	}
	var runs []*rfq.CrawlRun
	if err := cur.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("decoding crawl runs: %w", err)
	}
	return runs, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// idString renders a document id as a string. Ids written by this tool are
// strings; older documents use ObjectIDs.
func idString(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if str, ok := v.StringValueOK(); ok {
		return str
	}
	return v.String()
}

// idFilter matches id as a string or, when it parses as one, an ObjectID.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

var _ rfq.Store = (*MongoStore)(nil)
