package snippets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "snippets"

type snippetDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	Owner     string             `bson:"owner"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d snippetDocument) toSnippet() Snippet {
	return Snippet{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Content:   d.Content,
		Owner:     d.Owner,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoRepository stores snippets as documents in one collection.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		coll: db.Collection(collectionName),
		now:  time.Now,
	}
}

// EnsureIndexes creates the indexes ListAll and owner lookups rely on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create snippet indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, title, content, owner string) (*Snippet, error) {
	title, content, err := normalize(title, content)
	if err != nil {
		return nil, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, &ValidationError{Field: "owner"}
	}

	// BSON dates keep millisecond precision
	now := r.now().UTC().Truncate(time.Millisecond)
	doc := snippetDocument{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Content:   content,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create snippet: %w", err)
	}

	s := doc.toSnippet()
	return &s, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*Snippet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc snippetDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find snippet: %w", err)
	}

	s := doc.toSnippet()
	return &s, nil
}

func (r *MongoRepository) ListAll(ctx context.Context) ([]Snippet, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}

	var docs []snippetDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}

	list := make([]Snippet, 0, len(docs))
	for _, d := range docs {
		list = append(list, d.toSnippet())
	}
	return list, nil
}

func (r *MongoRepository) Update(ctx context.Context, id, title, content string) (*Snippet, error) {
	title, content, err := normalize(title, content)
	if err != nil {
		return nil, err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	update := bson.M{"$set": bson.M{
		"title":     title,
		"content":   content,
		"updatedAt": r.now().UTC().Truncate(time.Millisecond),
	}}

	var doc snippetDocument
	err = r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}

	s := doc.toSnippet()
	return &s, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
