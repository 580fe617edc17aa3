// Package mongostore keeps closer credit accounts in MongoDB, one document
// per user with the ledger embedded as an append-only array.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"agency-crm-api/internal/model"
	"agency-crm-api/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const creditCollection = "credit_accounts"

type accountDoc struct {
	UserID       string       `bson:"_id"`
	Current      int          `bson:"current"`
	Total        int          `bson:"total"`
	LastRecharge *time.Time   `bson:"lastRecharge,omitempty"`
	History      []historyDoc `bson:"history,omitempty"`
	CreatedAt    time.Time    `bson:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt"`
}

type historyDoc struct {
	Type            string    `bson:"type"`
	Amount          int       `bson:"amount"`
	Reason          string    `bson:"reason"`
	Date            time.Time `bson:"date"`
	RelatedClientID string    `bson:"relatedClientId,omitempty"`
	AdminID         string    `bson:"adminId,omitempty"`
}

// CreditStore implements repository.CreditRepository on a Mongo collection.
type CreditStore struct {
	collection *mongo.Collection
}

func NewCreditStore(db *mongo.Database) repository.CreditRepository {
	return &CreditStore{collection: db.Collection(creditCollection)}
}

var withoutHistory = bson.M{"history": 0}

func (s *CreditStore) FindAccount(ctx context.Context, userID uuid.UUID) (*model.CreditAccount, error) {
	var doc accountDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": userID.String()}, options.FindOne().SetProjection(withoutHistory)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find credit account: %w", err)
	}
	return doc.toModel()
}

func (s *CreditStore) FindAccounts(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.CreditAccount, error) {
	out := make(map[uuid.UUID]model.CreditAccount, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(withoutHistory))
	if err != nil {
		return nil, fmt.Errorf("find credit accounts: %w", err)
	}
	var docs []accountDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode credit accounts: %w", err)
	}
	for _, doc := range docs {
		account, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out[account.UserID] = *account
	}
	return out, nil
}

func (s *CreditStore) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$setOnInsert": bson.M{"current": 0, "total": 0, "history": bson.A{}, "createdAt": now, "updatedAt": now}},
		options.Update().SetUpsert(true),
	)
	// Two racing upserts can both miss and one loses on the _id index.
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("ensure credit account: %w", err)
	}
	return nil
}

func (s *CreditStore) Deduct(ctx context.Context, userID uuid.UUID, cost int, entry *model.CreditHistory) (*model.CreditAccount, error) {
	entry.UserID = userID
	var doc accountDoc
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": userID.String(), "current": bson.M{"$gte": cost}},
		bson.M{
			"$inc":  bson.M{"current": -cost},
			"$set":  bson.M{"updatedAt": time.Now()},
			"$push": bson.M{"history": fromModel(entry)},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(withoutHistory),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrInsufficientBalance
		}
		return nil, fmt.Errorf("deduct credits: %w", err)
	}
	return doc.toModel()
}

func (s *CreditStore) Recharge(ctx context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (*model.CreditAccount, error) {
	entry.UserID = userID
	now := time.Now()
	filter := bson.M{"_id": userID.String()}
	update := bson.M{
		"$inc":         bson.M{"current": amount, "total": amount},
		"$set":         bson.M{"lastRecharge": now, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
		"$push":        bson.M{"history": fromModel(entry)},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After).SetProjection(withoutHistory)

	var doc accountDoc
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	// A concurrent first recharge can win the _id insert; the retry then matches its document.
	if mongo.IsDuplicateKeyError(err) {
		err = s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("recharge credits: %w", err)
	}
	return doc.toModel()
}

func (s *CreditStore) Initialize(ctx context.Context, userID uuid.UUID, amount int, entry *model.CreditHistory) (bool, error) {
	entry.UserID = userID
	now := time.Now()
	_, err := s.collection.InsertOne(ctx, accountDoc{
		UserID:       userID.String(),
		Current:      amount,
		Total:        amount,
		LastRecharge: &now,
		History:      []historyDoc{fromModel(entry)},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("initialize credits: %w", err)
	}
	return true, nil
}

// ListHistory loads the embedded ledger and pages it in memory.
func (s *CreditStore) ListHistory(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.CreditHistory, int64, error) {
	var doc accountDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": userID.String()}, options.FindOne().SetProjection(bson.M{"history": 1})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []model.CreditHistory{}, 0, nil
		}
		return nil, 0, fmt.Errorf("load credit history: %w", err)
	}

	entries := make([]model.CreditHistory, len(doc.History))
	for i, h := range doc.History {
		entries[i] = h.toModel(userID, uint(i+1))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date.Equal(entries[j].Date) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Date.After(entries[j].Date)
	})

	total := int64(len(entries))
	if offset < 0 || offset >= len(entries) {
		return []model.CreditHistory{}, total, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end], total, nil
}

func (d accountDoc) toModel() (*model.CreditAccount, error) {
	id, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("credit account id %q: %w", d.UserID, err)
	}
	return &model.CreditAccount{
		UserID:       id,
		Current:      d.Current,
		Total:        d.Total,
		LastRecharge: d.LastRecharge,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func fromModel(e *model.CreditHistory) historyDoc {
	doc := historyDoc{
		Type:   string(e.Type),
		Amount: e.Amount,
		Reason: e.Reason,
		Date:   e.Date,
	}
	if e.RelatedClientID != nil {
		doc.RelatedClientID = e.RelatedClientID.String()
	}
	if e.AdminID != nil {
		doc.AdminID = e.AdminID.String()
	}
	return doc
}

func (h historyDoc) toModel(userID uuid.UUID, seq uint) model.CreditHistory {
	entry := model.CreditHistory{
		ID:     seq,
		UserID: userID,
		Type:   model.CreditEntryType(h.Type),
		Amount: h.Amount,
		Reason: h.Reason,
		Date:   h.Date,
	}
	if id, err := uuid.Parse(h.RelatedClientID); err == nil {
		entry.RelatedClientID = &id
	}
	if id, err := uuid.Parse(h.AdminID); err == nil {
		entry.AdminID = &id
	}
	return entry
}
