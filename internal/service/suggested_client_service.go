package service

import (
	"context"
	"errors"

	"agency-crm-api/internal/model"
	"agency-crm-api/internal/repository"
	"agency-crm-api/pkg/validator"

	"github.com/google/uuid"
)

type SuggestedClientService interface {
	List(ctx context.Context, actor Actor, query ListClientsQuery) (*ClientPage, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.SuggestedClientResponse, error)
	Create(ctx context.Context, actor Actor, req *SuggestedClientRequest) (*model.SuggestedClientResponse, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, req *SuggestedClientRequest) (*model.SuggestedClientResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ListClientsQuery struct {
	Search   string
	MinScore *int
	Page     int
	Limit    int
}

type ClientPage struct {
	Clients    []model.SuggestedClientResponse `json:"clients"`
	Pagination Pagination                      `json:"pagination"`
}

type SuggestedClientRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Company     string `json:"company" validate:"max=255"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number" validate:"max=30"`
	Score       int    `json:"score" validate:"gte=0"`
	Source      string `json:"source" validate:"max=100"`
	Notes       string `json:"notes"`
}

type suggestedClientService struct {
	clientRepo repository.SuggestedClientRepository
}

func NewSuggestedClientService(clientRepo repository.SuggestedClientRepository) SuggestedClientService {
	return &suggestedClientService{clientRepo: clientRepo}
}

// masked reports whether phone numbers stay hidden behind the metered reveal.
func masked(actor Actor) bool {
	return actor.Role == model.RoleCloser
}

func (s *suggestedClientService) List(ctx context.Context, actor Actor, query ListClientsQuery) (*ClientPage, error) {
	var (
		offset int
		err    error
	)
	query.Page, query.Limit, offset, err = pageWindow(query.Page, query.Limit)
	if err != nil {
		return nil, err
	}

	clients, total, err := s.clientRepo.FindAll(ctx, repository.SuggestedClientFilter{
		Search:   query.Search,
		MinScore: query.MinScore,
		Offset:   offset,
		Limit:    query.Limit,
	})
	if err != nil {
		return nil, newInternal("Failed to load clients", err)
	}

	hide := masked(actor)
	out := make([]model.SuggestedClientResponse, len(clients))
	for i := range clients {
		out[i] = clients[i].ToResponse(hide)
	}
	return &ClientPage{
		Clients: out,
		Pagination: Pagination{
			Page:       query.Page,
			Limit:      query.Limit,
			Total:      total,
			TotalPages: int((total + int64(query.Limit) - 1) / int64(query.Limit)),
		},
	}, nil
}

func (s *suggestedClientService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.SuggestedClientResponse, error) {
	client, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := client.ToResponse(masked(actor))
	return &resp, nil
}

func (s *suggestedClientService) Create(ctx context.Context, actor Actor, req *SuggestedClientRequest) (*model.SuggestedClientResponse, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, newValidation(validator.Message(errs))
	}
	client := &model.SuggestedClient{}
	apply(client, req)
	client.CreatedBy = actor.ID.String()
	client.UpdatedBy = actor.ID.String()

	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, newInternal("Failed to create client", err)
	}
	resp := client.ToResponse(masked(actor))
	return &resp, nil
}

func (s *suggestedClientService) Update(ctx context.Context, actor Actor, id uuid.UUID, req *SuggestedClientRequest) (*model.SuggestedClientResponse, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, newValidation(validator.Message(errs))
	}
	client, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(client, req)
	client.UpdatedBy = actor.ID.String()

	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, newInternal("Failed to update client", err)
	}
	resp := client.ToResponse(masked(actor))
	return &resp, nil
}

func (s *suggestedClientService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.clientRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newNotFound("Client not found")
		}
		return newInternal("Failed to delete client", err)
	}
	return nil
}

func (s *suggestedClientService) find(ctx context.Context, id uuid.UUID) (*model.SuggestedClient, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newNotFound("Client not found")
		}
		return nil, newInternal("Failed to load client", err)
	}
	return client, nil
}

func apply(client *model.SuggestedClient, req *SuggestedClientRequest) {
	client.Name = req.Name
	client.Company = req.Company
	client.Email = req.Email
	client.PhoneNumber = req.PhoneNumber
	client.Score = req.Score
	client.Source = req.Source
	client.Notes = req.Notes
}
