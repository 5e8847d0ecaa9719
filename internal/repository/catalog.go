package repository

import (
	"context"

	"indiverse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository serves the read-only heritage content.
type CatalogRepository interface {
	ListHeritage(ctx context.Context) ([]models.HeritageSite, error)
	GetHeritage(ctx context.Context, siteID string) (*models.HeritageSite, error)
	// GetHeritageByIDs returns the sites among ids in no particular order.
	GetHeritageByIDs(ctx context.Context, ids []string) ([]models.HeritageSite, error)
	ListBlogs(ctx context.Context) ([]models.Blog, error)
	GetBlog(ctx context.Context, id string) (*models.Blog, error)
	GetState(ctx context.Context, id string) (*models.State, error)
	ListTours(ctx context.Context) ([]models.Tour, error)
	GetTour(ctx context.Context, id string) (*models.Tour, error)
	GetQuiz(ctx context.Context, monumentID string) (*models.Quiz, error)
	// Upsert inserts records, a pointer to a slice of catalog models,
	// replacing rows whose key already exists.
	Upsert(ctx context.Context, records any) error
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository returns a new CatalogRepository implementation.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListHeritage(ctx context.Context) ([]models.HeritageSite, error) {
	var sites []models.HeritageSite
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&sites).Error; err != nil {
		return nil, classify(err, "Site", "list")
	}
	return sites, nil
}

func (r *catalogRepository) GetHeritage(ctx context.Context, siteID string) (*models.HeritageSite, error) {
	var site models.HeritageSite
	if err := r.db.WithContext(ctx).First(&site, "site_id = ?", siteID).Error; err != nil {
		return nil, classify(err, "Site", siteID)
	}
	return &site, nil
}

func (r *catalogRepository) GetHeritageByIDs(ctx context.Context, ids []string) ([]models.HeritageSite, error) {
	if len(ids) == 0 {
		return []models.HeritageSite{}, nil
	}
	var sites []models.HeritageSite
	if err := r.db.WithContext(ctx).Where("site_id IN ?", ids).Find(&sites).Error; err != nil {
		return nil, classify(err, "Site", ids)
	}
	return sites, nil
}

func (r *catalogRepository) ListBlogs(ctx context.Context) ([]models.Blog, error) {
	var blogs []models.Blog
	if err := r.db.WithContext(ctx).Order("date DESC").Order("id ASC").Find(&blogs).Error; err != nil {
		return nil, classify(err, "Blog", "list")
	}
	return blogs, nil
}

func (r *catalogRepository) GetBlog(ctx context.Context, id string) (*models.Blog, error) {
	var blog models.Blog
	if err := r.db.WithContext(ctx).First(&blog, "id = ?", id).Error; err != nil {
		return nil, classify(err, "Blog", id)
	}
	return &blog, nil
}

func (r *catalogRepository) GetState(ctx context.Context, id string) (*models.State, error) {
	var state models.State
	if err := r.db.WithContext(ctx).First(&state, "id = ?", id).Error; err != nil {
		return nil, classify(err, "State", id)
	}
	return &state, nil
}

func (r *catalogRepository) ListTours(ctx context.Context) ([]models.Tour, error) {
	var tours []models.Tour
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&tours).Error; err != nil {
		return nil, classify(err, "Tour", "list")
	}
	return tours, nil
}

func (r *catalogRepository) GetTour(ctx context.Context, id string) (*models.Tour, error) {
	var tour models.Tour
	if err := r.db.WithContext(ctx).First(&tour, "id = ?", id).Error; err != nil {
		return nil, classify(err, "Tour", id)
	}
	return &tour, nil
}

func (r *catalogRepository) GetQuiz(ctx context.Context, monumentID string) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).First(&quiz, "monument_id = ?", monumentID).Error; err != nil {
		return nil, classify(err, "Quiz", monumentID)
	}
	return &quiz, nil
}

func (r *catalogRepository) Upsert(ctx context.Context, records any) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, 100).Error
	return classify(err, "Catalog record", "batch")
}

// MessageRepository stores contact-form submissions.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	Recent(ctx context.Context, limit int) ([]models.MessageSummary, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return classify(r.db.WithContext(ctx).Create(message).Error, "Message", message.Email)
}

func (r *messageRepository) Recent(ctx context.Context, limit int) ([]models.MessageSummary, error) {
	summaries := []models.MessageSummary{}
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("name", "timestamp").
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Scan(&summaries).Error
	if err != nil {
		return nil, classify(err, "Message", "recent")
	}
	return summaries, nil
}
