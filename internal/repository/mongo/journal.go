package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"launcherd/internal/domain"
)

// JournalRepository stores session transitions for diagnostics. Entries are
// only appended and listed; nothing reads them back into session state.
type JournalRepository struct {
	collection *mongo.Collection
}

type errorDoc struct {
	Kind       string `bson:"kind"`
	Message    string `bson:"message"`
	Technical  string `bson:"technical,omitempty"`
	OccurredAt int64  `bson:"occurredAt"`
}

type journalDoc struct {
	ID          string    `bson:"_id"`
	InstanceID  string    `bson:"instanceId"`
	OperationID int64     `bson:"operationId"`
	From        string    `bson:"from"`
	To          string    `bson:"to"`
	Cause       string    `bson:"cause"`
	Error       *errorDoc `bson:"error,omitempty"`
	At          int64     `bson:"at"`
}

func NewJournalRepository(client *mongo.Client, dbName, collectionName string) *JournalRepository {
	return &JournalRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *JournalRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "instanceId", Value: 1}, {Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "error.kind", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *JournalRepository) Append(ctx context.Context, entry domain.JournalEntry) error {
	if entry.ID == "" {
		return errors.New("journal entry id is required")
	}
	_, err := r.collection.InsertOne(ctx, toJournalDoc(entry))
	return err
}

func (r *JournalRepository) ListRecent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []journalDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	entries := make([]domain.JournalEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, fromJournalDoc(doc))
	}
	return entries, nil
}

// Get returns one entry by id.
func (r *JournalRepository) Get(ctx context.Context, id string) (domain.JournalEntry, error) {
	var doc journalDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.JournalEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return fromJournalDoc(doc), nil
}

func toJournalDoc(e domain.JournalEntry) journalDoc {
	doc := journalDoc{
		ID:          e.ID,
		InstanceID:  e.InstanceID,
		OperationID: int64(e.OperationID),
		From:        string(e.From),
		To:          string(e.To),
		Cause:       e.Cause,
		At:          e.At.UnixMilli(),
	}
	if e.Error != nil {
		doc.Error = &errorDoc{
			Kind:       string(e.Error.Kind),
			Message:    e.Error.Message,
			Technical:  e.Error.Technical,
			OccurredAt: e.Error.OccurredAt.UnixMilli(),
		}
	}
	return doc
}

func fromJournalDoc(doc journalDoc) domain.JournalEntry {
	e := domain.JournalEntry{
		ID:         doc.ID,
		InstanceID: doc.InstanceID,
		Transition: domain.Transition{
			OperationID: domain.OperationID(doc.OperationID),
			From:        domain.Phase(doc.From),
			To:          domain.Phase(doc.To),
			Cause:       doc.Cause,
			At:          time.UnixMilli(doc.At).UTC(),
		},
	}
	if doc.Error != nil {
		e.Error = &domain.ErrorInfo{
			Kind:       domain.ParseErrorKind(doc.Error.Kind),
			Message:    doc.Error.Message,
			Technical:  doc.Error.Technical,
			OccurredAt: time.UnixMilli(doc.Error.OccurredAt).UTC(),
		}
	}
	return e
}
