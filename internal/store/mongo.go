package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Document field names in the customer collection.
const (
	fieldEmail              = "email"
	fieldExternalStoreID    = "externalStoreId"
	fieldStoreName          = "storeName"
	fieldStoreInfoUpdatedAt = "storeInfoUpdatedAt"
)

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongo connects to MongoDB and verifies the primary is reachable.
func NewMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, model.NewJobError(model.KindConnection, "connect mongo", eris.Wrap(err, "mongo: connect"))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, model.NewJobError(model.KindConnection, "connect mongo", eris.Wrap(err, "mongo: ping"))
	}
	return newMongoStore(client, client.Database(database).Collection(collection)), nil
}

func newMongoStore(client *mongo.Client, coll *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, coll: coll}
}

func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: fieldEmail, Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: fieldExternalStoreID, Value: 1}}},
		{Keys: bson.D{{Key: fieldStoreName, Value: 1}, {Key: fieldExternalStoreID, Value: 1}}},
	})
	return eris.Wrap(err, "mongo: migrate")
}

func (s *MongoStore) Close() error {
	return eris.Wrap(s.client.Disconnect(context.Background()), "mongo: disconnect")
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*model.StoredRecord, error) {
	var rec model.StoredRecord
	err := s.coll.FindOne(ctx, bson.M{fieldEmail: email}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "mongo: find %s", email)
	}
	return &rec, nil
}

func (s *MongoStore) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, filterDoc(f))
	return n, eris.Wrap(err, "mongo: count")
}

func (s *MongoStore) Find(ctx context.Context, f Filter, limit int) ([]model.StoredRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, filterDoc(f), opts)
	if err != nil {
		return nil, eris.Wrap(err, "mongo: find")
	}
	var recs []model.StoredRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, eris.Wrap(err, "mongo: find decode")
	}
	return recs, nil
}

type storeGroup struct {
	ID struct {
		StoreName       string `bson:"storeName"`
		ExternalStoreID string `bson:"externalStoreId"`
	} `bson:"_id"`
	Count int64 `bson:"count"`
}

func (s *MongoStore) TopStores(ctx context.Context, f Filter, limit int) ([]model.StoreCount, error) {
	cur, err := s.coll.Aggregate(ctx, topStoresPipeline(f, limit))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: top stores")
	}
	var groups []storeGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, eris.Wrap(err, "mongo: top stores decode")
	}
	out := make([]model.StoreCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.StoreCount{
			StoreName:       g.ID.StoreName,
			ExternalStoreID: g.ID.ExternalStoreID,
			Customers:       g.Count,
		})
	}
	return out, nil
}

func (s *MongoStore) UpdateStoreInfo(ctx context.Context, email string, patch model.StoreInfoPatch) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{fieldEmail: email}, updateDoc(patch))
	return eris.Wrapf(err, "mongo: update store info %s", email)
}

func (s *MongoStore) Insert(ctx context.Context, rec model.StoredRecord) error {
	_, err := s.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return eris.Wrapf(ErrDuplicate, "mongo: insert %s", rec.Email)
	}
	return eris.Wrapf(err, "mongo: insert %s", rec.Email)
}

func presentDoc() bson.M { return bson.M{"$nin": bson.A{nil, ""}} }
func missingDoc() bson.M { return bson.M{"$in": bson.A{nil, ""}} }

// filterDoc translates a Filter into a query document.
func filterDoc(f Filter) bson.M {
	var clauses []bson.M
	if f.WithStoreID {
		clauses = append(clauses, bson.M{fieldExternalStoreID: presentDoc()})
	}
	if f.WithStoreName {
		clauses = append(clauses, bson.M{fieldStoreName: presentDoc()})
	}
	if f.MissingStoreInfo {
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{fieldExternalStoreID: missingDoc()},
			bson.M{fieldStoreName: missingDoc()},
		}})
	}
	if f.ExternalStoreID != "" {
		clauses = append(clauses, bson.M{fieldExternalStoreID: f.ExternalStoreID})
	}
	switch len(clauses) {
	case 0:
		return bson.M{}
	case 1:
		return clauses[0]
	}
	and := make(bson.A, 0, len(clauses))
	for _, c := range clauses {
		and = append(and, c)
	}
	return bson.M{"$and": and}
}

func topStoresPipeline(f Filter, limit int) mongo.Pipeline {
	f.WithStoreName = true
	p := mongo.Pipeline{
		{{Key: "$match", Value: filterDoc(f)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "storeName", Value: "$" + fieldStoreName},
				{Key: "externalStoreId", Value: "$" + fieldExternalStoreID},
			}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "count", Value: -1},
			{Key: "_id.storeName", Value: 1},
		}}},
	}
	if limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return p
}

// updateDoc sets only the fields carried by the patch.
func updateDoc(patch model.StoreInfoPatch) bson.M {
	set := bson.M{fieldStoreInfoUpdatedAt: patch.UpdatedAt.UTC()}
	if patch.ExternalStoreID != nil {
		set[fieldExternalStoreID] = *patch.ExternalStoreID
	}
	if patch.StoreName != nil {
		set[fieldStoreName] = *patch.StoreName
	}
	return bson.M{"$set": set}
}
