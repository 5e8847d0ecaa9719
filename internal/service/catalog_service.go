package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"indiverse/internal/models"
	"indiverse/internal/repository"
	"indiverse/internal/validation"
)

// recentMessageLimit is how many submissions the public recent list shows.
const recentMessageLimit = 5

// CatalogService serves heritage content as the stored source documents.
type CatalogService struct {
	catalog repository.CatalogRepository
}

func NewCatalogService(catalog repository.CatalogRepository) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) ListHeritage(ctx context.Context) ([]json.RawMessage, error) {
	sites, err := s.catalog.ListHeritage(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]json.RawMessage, len(sites))
	for i := range sites {
		docs[i] = json.RawMessage(sites[i].Document)
	}
	return docs, nil
}

func (s *CatalogService) GetHeritage(ctx context.Context, id string) (json.RawMessage, error) {
	site, err := s.catalog.GetHeritage(ctx, id)
	if err != nil {
		return nil, renameNotFound(err, "Site")
	}
	return json.RawMessage(site.Document), nil
}

func (s *CatalogService) ListBlogs(ctx context.Context) ([]json.RawMessage, error) {
	blogs, err := s.catalog.ListBlogs(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]json.RawMessage, len(blogs))
	for i := range blogs {
		docs[i] = json.RawMessage(blogs[i].Document)
	}
	return docs, nil
}

func (s *CatalogService) GetBlog(ctx context.Context, id string) (json.RawMessage, error) {
	blog, err := s.catalog.GetBlog(ctx, id)
	if err != nil {
		return nil, renameNotFound(err, "Blog")
	}
	return json.RawMessage(blog.Document), nil
}

func (s *CatalogService) GetState(ctx context.Context, id string) (json.RawMessage, error) {
	state, err := s.catalog.GetState(ctx, id)
	if err != nil {
		return nil, renameNotFound(err, "State")
	}
	return json.RawMessage(state.Document), nil
}

func (s *CatalogService) ListTours(ctx context.Context) ([]json.RawMessage, error) {
	tours, err := s.catalog.ListTours(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]json.RawMessage, len(tours))
	for i := range tours {
		docs[i] = json.RawMessage(tours[i].Document)
	}
	return docs, nil
}

// GetTour returns the tour document with a "monuments" array holding the
// site documents in tour order. Ids with no matching site are skipped.
func (s *CatalogService) GetTour(ctx context.Context, id string) (map[string]any, error) {
	tour, err := s.catalog.GetTour(ctx, id)
	if err != nil {
		return nil, renameNotFound(err, "Tour")
	}

	out := map[string]any{}
	if len(tour.Document) > 0 {
		if err := json.Unmarshal(tour.Document, &out); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	sites, err := s.catalog.GetHeritageByIDs(ctx, tour.MonumentIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]json.RawMessage, len(sites))
	for i := range sites {
		byID[sites[i].SiteID] = json.RawMessage(sites[i].Document)
	}

	monuments := make([]json.RawMessage, 0, len(tour.MonumentIDs))
	for _, siteID := range tour.MonumentIDs {
		if doc, ok := byID[siteID]; ok {
			monuments = append(monuments, doc)
		}
	}
	out["monuments"] = monuments
	return out, nil
}

func (s *CatalogService) GetQuiz(ctx context.Context, monumentID string) (json.RawMessage, error) {
	quiz, err := s.catalog.GetQuiz(ctx, monumentID)
	if err != nil {
		return nil, renameNotFound(err, "Quiz")
	}
	return json.RawMessage(quiz.Document), nil
}

func renameNotFound(err error, resource string) error {
	if models.HasCode(err, models.CodeNotFound) {
		return models.NewResourceNotFoundError(resource)
	}
	return err
}

// MessageService accepts contact-form submissions.
type MessageService struct {
	messages repository.MessageRepository
	now      func() time.Time
}

func NewMessageService(messages repository.MessageRepository) *MessageService {
	return &MessageService{messages: messages, now: func() time.Time { return time.Now().UTC() }}
}

type MessageInput struct {
	Name    string
	Email   string
	Message string
}

// Submit validates and stores a message, stamping its timestamp.
func (s *MessageService) Submit(ctx context.Context, in MessageInput) error {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	body := strings.TrimSpace(in.Message)

	if name == "" || email == "" || body == "" {
		return models.NewValidationError("Name, email, and message are required")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	if len(name) > 120 {
		return models.NewValidationError("Name too long (max 120 characters)")
	}
	if len(body) > 5000 {
		return models.NewValidationError("Message too long (max 5000 characters)")
	}

	return s.messages.Create(ctx, &models.Message{
		Name:      name,
		Email:     email,
		Message:   body,
		Timestamp: s.now(),
	})
}

// Recent lists the newest submissions without their private fields.
func (s *MessageService) Recent(ctx context.Context) ([]models.MessageSummary, error) {
	return s.messages.Recent(ctx, recentMessageLimit)
}
