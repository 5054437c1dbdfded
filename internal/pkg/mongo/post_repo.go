package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"Bazaar/internal/model"
	"Bazaar/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const postCollection = "posts"

type postRepoImpl struct {
	col *mongo.Collection
}

// NewPostRepo 基于 MongoDB 的帖子存储，与 gorm 实现语义一致
func NewPostRepo(db *mongo.Database) repository.PostRepo {
	return &postRepoImpl{
		col: db.Collection(postCollection),
	}
}

func ensurePostIndexes(ctx context.Context, col *mongo.Collection) error {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (s *postRepoImpl) InsertPost(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	_, err := s.col.InsertOne(ctx, post)
	return err
}

func (s *postRepoImpl) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

func (s *postRepoImpl) UpdatePostFields(ctx context.Context, id string, fields map[string]any) (bool, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.PostStatusProcessing},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *postRepoImpl) UpdatePostStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *postRepoImpl) DeletePost(ctx context.Context, id string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *postRepoImpl) ListPublished(ctx context.Context, offset, limit int) ([]*model.Post, int64, error) {
	return s.list(ctx, bson.M{"status": model.PostStatusPublished}, offset, limit)
}

func (s *postRepoImpl) ListByOwner(ctx context.Context, filter repository.OwnerFilter, offset, limit int) ([]*model.Post, int64, error) {
	query := bson.M{
		"owner_id": filter.OwnerID,
		"status":   bson.M{"$ne": model.PostStatusDeleted},
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Keyword != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Keyword), "$options": "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	return s.list(ctx, query, offset, limit)
}

func (s *postRepoImpl) ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]*model.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := s.col.Find(ctx, bson.M{
		"status":     model.PostStatusProcessing,
		"created_at": bson.M{"$lt": before},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var posts []*model.Post
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *postRepoImpl) list(ctx context.Context, filter bson.M, offset, limit int) ([]*model.Post, int64, error) {
	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var posts []*model.Post
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}
