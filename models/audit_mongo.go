package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditTimeout = 5 * time.Second

type mongoAuditRepo struct {
	col *mongo.Collection
}

func NewMongoAuditRepository(col *mongo.Collection) AuditRepository {
	return &mongoAuditRepo{col: col}
}

// EnsureAuditIndexes creates the (event_id, at) index used by ListForEvent.
func EnsureAuditIndexes(ctx context.Context, col *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "at", Value: 1}},
	})
	return err
}

func (r *mongoAuditRepo) Record(ctx context.Context, e AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *mongoAuditRepo) ListForEvent(ctx context.Context, eventID int64) ([]AuditEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []AuditEntry{}
	for cur.Next(ctx) {
		var e AuditEntry
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

// NopAuditRepository is used when the audit trail is disabled.
type NopAuditRepository struct{}

func (NopAuditRepository) Record(context.Context, AuditEntry) error { return nil }

func (NopAuditRepository) ListForEvent(context.Context, int64) ([]AuditEntry, error) {
	return []AuditEntry{}, nil
}
