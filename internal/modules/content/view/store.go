package view

import (
	"context"
	"errors"
	"fmt"

	"github.com/perse-cms/perse/internal/models"
	"github.com/perse-cms/perse/internal/pkg/pagination"
	"github.com/perse-cms/perse/internal/pkg/response"
	"gorm.io/gorm"
)

// Store errors. Service maps them onto Kinds.
var (
	ErrRowNotFound     = errors.New("view row not found")
	ErrDuplicateRoute  = errors.New("duplicate route")
	ErrHomepageMissing = errors.New("homepage target row missing")
)

// ListFilter narrows List. A zero Visibility lists every view.
type ListFilter struct {
	Visibility models.Visibility
	Page       pagination.Query
}

// Store is the relational boundary of the view service.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	FindByRoute(ctx context.Context, route string, visibility models.Visibility) (*models.ViewModel, error)
	FindHomepage(ctx context.Context, visibility models.Visibility) (*models.ViewModel, error)
	FindByID(ctx context.Context, id string) (*models.ViewModel, error)
	List(ctx context.Context, filter ListFilter) ([]models.ViewModel, response.Pagination, error)
}

// Tx is one create transaction. Rollback after Commit is an error the
// caller may ignore.
type Tx interface {
	CountRoute(ctx context.Context, route string) (int64, error)
	Insert(ctx context.Context, v *models.ViewModel) error
	ClearHomepage(ctx context.Context) (int64, error)
	SetHomepage(ctx context.Context, id string) error
	Commit() error
	Rollback() error
}

// GormStore implements Store on a shared GORM pool.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) Begin(ctx context.Context) (Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &gormTx{tx: tx}, nil
}

// FindByRoute returns the oldest view with route and visibility.
func (s *GormStore) FindByRoute(ctx context.Context, route string, visibility models.Visibility) (*models.ViewModel, error) {
	var v models.ViewModel
	err := s.db.WithContext(ctx).
		Where("route = ? AND visibility = ?", route, visibility).
		Order("created_at ASC").
		First(&v).Error
	return lookupResult(&v, err, "find view by route")
}

func (s *GormStore) FindHomepage(ctx context.Context, visibility models.Visibility) (*models.ViewModel, error) {
	var v models.ViewModel
	err := s.db.WithContext(ctx).
		Where("is_homepage = ? AND visibility = ?", true, visibility).
		First(&v).Error
	return lookupResult(&v, err, "find homepage")
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.ViewModel, error) {
	var v models.ViewModel
	err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error
	return lookupResult(&v, err, "find view by id")
}

// List returns views newest first.
func (s *GormStore) List(ctx context.Context, filter ListFilter) ([]models.ViewModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.ViewModel{}).Order("created_at DESC, id DESC")
	if filter.Visibility != "" {
		tx = tx.Where("visibility = ?", filter.Visibility)
	}
	var views []models.ViewModel
	pag, err := pagination.Paginate(tx, filter.Page, &views)
	if err != nil {
		return nil, response.Pagination{}, fmt.Errorf("list views: %w", err)
	}
	return views, pag, nil
}

func lookupResult(v *models.ViewModel, err error, op string) (*models.ViewModel, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRowNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

type gormTx struct {
	tx *gorm.DB
}

func (g *gormTx) CountRoute(ctx context.Context, route string) (int64, error) {
	var n int64
	if err := g.tx.WithContext(ctx).Model(&models.ViewModel{}).Where("route = ?", route).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count route: %w", err)
	}
	return n, nil
}

func (g *gormTx) Insert(ctx context.Context, v *models.ViewModel) error {
	if err := g.tx.WithContext(ctx).Create(v).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("insert view: %w: %w", ErrDuplicateRoute, err)
		}
		return fmt.Errorf("insert view: %w", err)
	}
	return nil
}

func (g *gormTx) ClearHomepage(ctx context.Context) (int64, error) {
	res := g.tx.WithContext(ctx).Model(&models.ViewModel{}).
		Where("is_homepage = ?", true).
		Update("is_homepage", false)
	if res.Error != nil {
		return 0, fmt.Errorf("clear homepage: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (g *gormTx) SetHomepage(ctx context.Context, id string) error {
	res := g.tx.WithContext(ctx).Model(&models.ViewModel{}).
		Where("id = ?", id).
		Update("is_homepage", true)
	if res.Error != nil {
		return fmt.Errorf("set homepage: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("set homepage %s: %w", id, ErrHomepageMissing)
	}
	return nil
}

func (g *gormTx) Commit() error {
	return g.tx.Commit().Error
}

func (g *gormTx) Rollback() error {
	return g.tx.Rollback().Error
}
