package repository

import (
	"context"

	"agency-crm-api/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SuggestedClientFilter narrows a lead listing.
type SuggestedClientFilter struct {
	Search   string
	MinScore *int
	Offset   int
	Limit    int
}

type SuggestedClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.SuggestedClient, error)
	FindAll(ctx context.Context, filter SuggestedClientFilter) ([]model.SuggestedClient, int64, error)
	Create(ctx context.Context, client *model.SuggestedClient) error
	Update(ctx context.Context, client *model.SuggestedClient) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type suggestedClientRepo struct {
	db *gorm.DB
}

func NewSuggestedClientRepo(db *gorm.DB) SuggestedClientRepository {
	return &suggestedClientRepo{db}
}

func (r *suggestedClientRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.SuggestedClient, error) {
	var client model.SuggestedClient
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &client, nil
}

func (r *suggestedClientRepo) FindAll(ctx context.Context, filter SuggestedClientFilter) ([]model.SuggestedClient, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.SuggestedClient{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name ILIKE ? OR company ILIKE ?", like, like)
	}
	if filter.MinScore != nil {
		q = q.Where("score >= ?", *filter.MinScore)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if filter.Offset < 0 {
		return []model.SuggestedClient{}, total, nil
	}

	var clients []model.SuggestedClient
	err := q.Order("score DESC, created_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&clients).Error
	return clients, total, err
}

func (r *suggestedClientRepo) Create(ctx context.Context, client *model.SuggestedClient) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *suggestedClientRepo) Update(ctx context.Context, client *model.SuggestedClient) error {
	return r.db.WithContext(ctx).Save(client).Error
}

func (r *suggestedClientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.SuggestedClient{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
