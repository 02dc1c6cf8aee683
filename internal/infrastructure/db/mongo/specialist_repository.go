package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

const (
	collectionSpecialists    = "specialists"
	collectionCertifications = "certifications"
	collectionReviews        = "reviews"
)

// SpecialistRepository implements ports.SpecialistRepository using MongoDB.
type SpecialistRepository struct {
	col *mongo.Collection
}

func NewSpecialistRepository(db *mongo.Database) *SpecialistRepository {
	return &SpecialistRepository{col: db.Collection(collectionSpecialists)}
}

func (r *SpecialistRepository) Create(ctx context.Context, s *domain.Specialist) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("insert specialist: %w", err)
	}
	return nil
}

func (r *SpecialistRepository) Update(ctx context.Context, s *domain.Specialist) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"biography":      s.Biography,
		"specialization": s.Specialization,
		"experience":     s.Experience,
		"price_per_hour": s.PricePerHour,
		"is_available":   s.IsAvailable,
		"updated_at":     s.UpdatedAt,
	}}
	res, err := r.col.UpdateByID(ctx, s.ID, update)
	if err != nil {
		return fmt.Errorf("update specialist: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSpecialistNotFound
	}
	return nil
}

func (r *SpecialistRepository) FindByID(ctx context.Context, id string) (*domain.Specialist, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *SpecialistRepository) FindByUserID(ctx context.Context, userID string) (*domain.Specialist, error) {
	return r.findOne(ctx, bson.M{"user_id": userID})
}

func (r *SpecialistRepository) findOne(ctx context.Context, filter bson.M) (*domain.Specialist, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s domain.Specialist
	if err := r.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSpecialistNotFound
		}
		return nil, fmt.Errorf("find specialist: %w", err)
	}
	return &s, nil
}

// List returns the specialists matching f ordered by id.
func (r *SpecialistRepository) List(ctx context.Context, f ports.SpecialistFilter) ([]*domain.Specialist, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, specialistFilter(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list specialists: %w", err)
	}
	out := make([]*domain.Specialist, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode specialists: %w", err)
	}
	return out, nil
}

func specialistFilter(f ports.SpecialistFilter) bson.M {
	filter := bson.M{}
	if f.IDs != nil {
		filter["_id"] = bson.M{"$in": f.IDs}
	}
	if f.OnlyAvailable {
		filter["is_available"] = true
	}
	if f.Specialization != "" {
		filter["specialization"] = f.Specialization
	}
	if f.MinExperience > 0 {
		filter["experience"] = bson.M{"$gte": f.MinExperience}
	}
	if f.MaxPrice > 0 {
		filter["price_per_hour"] = bson.M{"$lte": f.MaxPrice}
	}
	return filter
}

func (r *SpecialistRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "specialization", Value: 1}}},
	})
	return err
}

// ---------------------------------------------------------------------------
// Certifications
// ---------------------------------------------------------------------------

// CertificationRepository implements ports.CertificationRepository using MongoDB.
type CertificationRepository struct {
	col *mongo.Collection
}

func NewCertificationRepository(db *mongo.Database) *CertificationRepository {
	return &CertificationRepository{col: db.Collection(collectionCertifications)}
}

func (r *CertificationRepository) Create(ctx context.Context, c *domain.Certification) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert certification: %w", err)
	}
	return nil
}

func (r *CertificationRepository) FindByID(ctx context.Context, id string) (*domain.Certification, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c domain.Certification
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCertificationNotFound
		}
		return nil, fmt.Errorf("find certification: %w", err)
	}
	return &c, nil
}

func (r *CertificationRepository) ListBySpecialist(ctx context.Context, specialistID string) ([]*domain.Certification, error) {
	return r.list(ctx, bson.M{"specialist_id": specialistID})
}

func (r *CertificationRepository) ListByStatus(ctx context.Context, status domain.CertificationStatus) ([]*domain.Certification, error) {
	return r.list(ctx, bson.M{"status": status})
}

func (r *CertificationRepository) list(ctx context.Context, filter bson.M) ([]*domain.Certification, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	out := make([]*domain.Certification, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode certifications: %w", err)
	}
	return out, nil
}

func (r *CertificationRepository) VerifiedSpecialistIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	raw, err := r.col.Distinct(ctx, "specialist_id", bson.M{"status": domain.CertificationVerified})
	if err != nil {
		return nil, fmt.Errorf("distinct verified specialists: %w", err)
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Review applies an admin decision with a status guard so that two concurrent
// reviews cannot both succeed.
func (r *CertificationRepository) Review(ctx context.Context, id string, status domain.CertificationStatus, reviewerID string, at time.Time) (*domain.Certification, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": domain.CertificationPending}
	update := bson.M{"$set": bson.M{
		"status":      status,
		"verified_at": at,
		"verified_by": reviewerID,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var c domain.Certification
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("review certification: %w", err)
	}

	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("review certification: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrCertificationNotFound
	}
	return nil, domain.ErrCertificationFinal
}

func (r *CertificationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "specialist_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "specialist_id", Value: 1}}},
	})
	return err
}

// ---------------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------------

// ReviewRepository implements ports.ReviewRepository using MongoDB.
type ReviewRepository struct {
	col *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{col: db.Collection(collectionReviews)}
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, rv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrReviewExists
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) ListBySpecialist(ctx context.Context, specialistID string) ([]*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"specialist_id": specialistID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	out := make([]*domain.Review, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return out, nil
}

// StatsBySpecialist aggregates mean rating and review count per specialist.
func (r *ReviewRepository) StatsBySpecialist(ctx context.Context, specialistIDs []string) (map[string]domain.ReviewStats, error) {
	out := make(map[string]domain.ReviewStats, len(specialistIDs))
	if len(specialistIDs) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"specialist_id": bson.M{"$in": specialistIDs}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        "$specialist_id",
			"avg_rating": bson.M{"$avg": "$rating"},
			"count":      bson.M{"$sum": 1},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate review stats: %w", err)
	}
	var rows []domain.ReviewStats
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode review stats: %w", err)
	}
	for _, row := range rows {
		out[row.SpecialistID] = row
	}
	return out, nil
}

func (r *ReviewRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "specialist_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
