package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

type refreshTokenDocument struct {
	ID            string     `bson:"_id"`
	UserID        string     `bson:"user_id"`
	Email         string     `bson:"email"`
	TokenHash     string     `bson:"token_hash"`
	IssuedAt      time.Time  `bson:"issued_at"`
	ExpiresAt     time.Time  `bson:"expires_at"`
	Revoked       bool       `bson:"revoked"`
	RevokedAt     *time.Time `bson:"revoked_at,omitempty"`
	RevokedReason string     `bson:"revoked_reason,omitempty"`
	UserAgent     string     `bson:"user_agent"`
	IP            string     `bson:"ip"`
}

func newRefreshTokenDocument(t *domain.RefreshToken) refreshTokenDocument {
	doc := refreshTokenDocument{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		Email:     t.Email,
		TokenHash: t.TokenHash,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
		Revoked:   t.Revoked,
		RevokedAt: t.RevokedAt,
		UserAgent: t.UserAgent,
		IP:        t.IP,
	}
	if t.RevokedReason != nil {
		doc.RevokedReason = string(*t.RevokedReason)
	}
	return doc
}

func (d *refreshTokenDocument) toDomain() (*domain.RefreshToken, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, err
	}

	t := &domain.RefreshToken{
		ID:        id,
		UserID:    userID,
		Email:     d.Email,
		TokenHash: d.TokenHash,
		IssuedAt:  d.IssuedAt,
		ExpiresAt: d.ExpiresAt,
		Revoked:   d.Revoked,
		RevokedAt: d.RevokedAt,
		UserAgent: d.UserAgent,
		IP:        d.IP,
	}
	if d.RevokedReason != "" {
		reason := domain.RevocationReason(d.RevokedReason)
		t.RevokedReason = &reason
	}
	return t, nil
}

type RefreshTokenRepository struct {
	coll *mongo.Collection
}

var _ ports.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

func (r *RefreshTokenRepository) Store(ctx context.Context, token *domain.RefreshToken) error {
	_, err := r.coll.InsertOne(ctx, newRefreshTokenDocument(token))
	return err
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	return r.findOne(ctx, bson.D{{Key: "token_hash", Value: tokenHash}})
}

func (r *RefreshTokenRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RefreshToken, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.RefreshToken, error) {
	filter := bson.D{
		{Key: "user_id", Value: userID.String()},
		{Key: "revoked", Value: false},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "issued_at", Value: -1}}))
	if err != nil {
		return nil, err
	}

	var docs []refreshTokenDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	tokens := make([]*domain.RefreshToken, 0, len(docs))
	for i := range docs {
		t, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// Revoke matches on revoked=false so only one concurrent caller modifies the
// document.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID, reason domain.RevocationReason, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "revoked", Value: false}},
		revokeUpdate(reason, at),
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason domain.RevocationReason, at time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.D{
			{Key: "user_id", Value: userID.String()},
			{Key: "revoked", Value: false},
			{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: at}}},
		},
		revokeUpdate(reason, at),
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *RefreshTokenRepository) findOne(ctx context.Context, filter bson.D) (*domain.RefreshToken, error) {
	var doc refreshTokenDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toDomain()
}

func revokeUpdate(reason domain.RevocationReason, at time.Time) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "revoked", Value: true},
		{Key: "revoked_at", Value: at},
		{Key: "revoked_reason", Value: string(reason)},
	}}}
}
