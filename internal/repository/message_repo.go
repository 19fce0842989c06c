package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/church-platform/services/chat-service/internal/apperrors"
	"github.com/yourorg/church-platform/services/chat-service/internal/models"
)

type mongoMessageRepo struct {
	col *mongo.Collection
}

func NewMongoMessageRepository(col *mongo.Collection) MessageRepository {
	return &mongoMessageRepo{col: col}
}

func pairFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "recipient_id": b},
		bson.M{"sender_id": b, "recipient_id": a},
	}}
}

func (r *mongoMessageRepo) Append(ctx context.Context, m *models.Message) (*models.Message, error) {
	now := time.Now().UTC()
	m.ID = primitive.NilObjectID
	m.IsRead = false
	m.ReadAt = nil
	m.CreatedAt = now
	m.UpdatedAt = now

	res, err := r.col.InsertOne(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: insert message: %v", apperrors.ErrPersistence, err)
	}
	m.ID = res.InsertedID.(primitive.ObjectID)
	return m, nil
}

func (r *mongoMessageRepo) History(ctx context.Context, viewerID, counterpartID string, page, limit int64) ([]models.Message, int64, error) {
	filter := pairFilter(viewerID, counterpartID)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: count messages: %v", apperrors.ErrPersistence, err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: find messages: %v", apperrors.ErrPersistence, err)
	}
	defer cur.Close(ctx)

	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("%w: decode messages: %v", apperrors.ErrPersistence, err)
	}
	return out, total, nil
}

// MarkRead flips every unread message addressed to the viewer from the
// counterpart. The "where currently false" filter makes it idempotent and
// safe under concurrent callers.
func (r *mongoMessageRepo) MarkRead(ctx context.Context, viewerID, counterpartID string) (int64, error) {
	now := time.Now().UTC()
	res, err := r.col.UpdateMany(ctx,
		bson.M{"sender_id": counterpartID, "recipient_id": viewerID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": now, "updated_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("%w: mark read: %v", apperrors.ErrPersistence, err)
	}
	return res.ModifiedCount, nil
}

func (r *mongoMessageRepo) UnreadCountForViewer(ctx context.Context, viewerID string) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"recipient_id": viewerID, "is_read": false})
	if err != nil {
		return 0, fmt.Errorf("%w: unread count: %v", apperrors.ErrPersistence, err)
	}
	return n, nil
}

// Summaries derives the conversation index in one pipeline: group the
// viewer's messages by counterpart, keep the newest as last_message, and
// count unread addressed to the viewer. Recomputed per call; volumes here
// are one admin and one congregation.
func (r *mongoMessageRepo) Summaries(ctx context.Context, viewerID string) ([]ConversationSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": viewerID},
			bson.M{"recipient_id": viewerID},
		}}}},
		{{Key: "$addFields", Value: bson.M{"counterpart": bson.M{
			"$cond": bson.A{bson.M{"$eq": bson.A{"$sender_id", viewerID}}, "$recipient_id", "$sender_id"},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$counterpart",
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$recipient_id", viewerID}},
					bson.M{"$eq": bson.A{"$is_read", false}},
				}}, 1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: conversation summaries: %v", apperrors.ErrPersistence, err)
	}
	defer cur.Close(ctx)

	var out []ConversationSummary
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%w: decode summaries: %v", apperrors.ErrPersistence, err)
	}
	return out, nil
}

func (r *mongoMessageRepo) TotalUnread(ctx context.Context) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"is_read": false})
	if err != nil {
		return 0, fmt.Errorf("%w: total unread: %v", apperrors.ErrPersistence, err)
	}
	return n, nil
}

func (r *mongoMessageRepo) DistinctCounterparts(ctx context.Context, adminID string) (int64, error) {
	sums, err := r.Summaries(ctx, adminID)
	if err != nil {
		return 0, err
	}
	return int64(len(sums)), nil
}

func (r *mongoMessageRepo) RespondedCounterparts(ctx context.Context, adminID string) (int64, error) {
	ids, err := r.col.Distinct(ctx, "recipient_id", bson.M{"sender_id": adminID})
	if err != nil {
		return 0, fmt.Errorf("%w: responded counterparts: %v", apperrors.ErrPersistence, err)
	}
	return int64(len(ids)), nil
}

func (r *mongoMessageRepo) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: malformed message id", apperrors.ErrValidation)
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("%w: delete message: %v", apperrors.ErrPersistence, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, id)
	}
	return nil
}
