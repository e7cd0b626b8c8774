package prescription

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mediscanner/api/pkg/common/models"
)

const CollectionName = "medical_records"

type document struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	models.Prescription `bson:",inline"`
}

func (d document) toModel() models.Prescription {
	rec := d.Prescription
	rec.ID = d.ID.Hex()
	if rec.Medicines == nil {
		rec.Medicines = []models.Medicine{}
	}
	if rec.ReportImages == nil {
		rec.ReportImages = []string{}
	}
	return rec
}

type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ Store = (*Repository)(nil)

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		coll: db.Collection(CollectionName),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the indexes used by owner listings and search.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	desc := func(key string) bson.D { return bson.D{{Key: key, Value: -1}} }
	asc := func(key string) bson.D { return bson.D{{Key: key, Value: 1}} }

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: asc("userId")},
		{Keys: asc("doctorName")},
		{Keys: asc("hospitalName")},
		{Keys: asc("date")},
		{Keys: desc("createdAt")},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: asc("medicines.name")},
	})
	if err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionName, err)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, rec models.Prescription) (models.Prescription, error) {
	now := r.now()
	rec.CreatedAt = &now
	rec.UpdatedAt = &now

	res, err := r.coll.InsertOne(ctx, document{Prescription: rec})
	if err != nil {
		return models.Prescription{}, fmt.Errorf("insert prescription: %w", err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return models.Prescription{}, fmt.Errorf("insert prescription: unexpected id type %T", res.InsertedID)
	}
	return document{ID: id, Prescription: rec}.toModel(), nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (models.Prescription, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Prescription{}, ErrNotFound
	}

	var doc document
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Prescription{}, ErrNotFound
		}
		return models.Prescription{}, fmt.Errorf("find prescription: %w", err)
	}
	return doc.toModel(), nil
}

func (r *Repository) FindAll(ctx context.Context, page Page) ([]models.Prescription, error) {
	return r.find(ctx, bson.M{}, page)
}

func (r *Repository) FindByOwner(ctx context.Context, ownerID string, page Page) ([]models.Prescription, error) {
	return r.find(ctx, bson.M{"userId": ownerID}, page)
}

func (r *Repository) Update(ctx context.Context, id string, fields map[string]interface{}) (models.Prescription, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Prescription{}, ErrNotFound
	}

	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	set["updatedAt"] = r.now()

	var doc document
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Prescription{}, ErrNotFound
		}
		return models.Prescription{}, fmt.Errorf("update prescription: %w", err)
	}
	return doc.toModel(), nil
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("delete prescription: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *Repository) Search(ctx context.Context, filter SearchFilter, page Page) ([]models.Prescription, error) {
	return r.find(ctx, buildSearchFilter(filter), page)
}

func (r *Repository) Count(ctx context.Context, filter SearchFilter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, buildSearchFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count prescriptions: %w", err)
	}
	return n, nil
}

func (r *Repository) find(ctx context.Context, filter bson.M, page Page) ([]models.Prescription, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if page.Skip > 0 {
		opts.SetSkip(page.Skip)
	}
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find prescriptions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode prescriptions: %w", err)
	}

	out := make([]models.Prescription, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toModel())
	}
	return out, nil
}

func buildSearchFilter(f SearchFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.DoctorName != "" {
		filter["doctorName"] = containsInsensitive(f.DoctorName)
	}
	if f.HospitalName != "" {
		filter["hospitalName"] = containsInsensitive(f.HospitalName)
	}
	if f.MedicineName != "" {
		filter["medicines.name"] = containsInsensitive(f.MedicineName)
	}
	if f.Date != "" {
		filter["date"] = f.Date
	}
	if f.CreatedFrom != nil || f.CreatedTo != nil {
		created := bson.M{}
		if f.CreatedFrom != nil {
			created["$gte"] = *f.CreatedFrom
		}
		if f.CreatedTo != nil {
			created["$lte"] = *f.CreatedTo
		}
		filter["createdAt"] = created
	}
	return filter
}

func containsInsensitive(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}
