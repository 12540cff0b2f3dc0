package view

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/perse-cms/perse/internal/models"
	"github.com/perse-cms/perse/internal/pkg/pagination"
	"github.com/perse-cms/perse/internal/pkg/response"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every service call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// publicVisibility is the only visibility served by route and homepage lookups.
const publicVisibility = models.VisibilityPublic

type Service struct {
	store   Store
	cache   *Cache
	log     *zap.Logger
	timeout time.Duration
}

type Option func(*Service)

// WithCache enables the Redis lookup cache.
func WithCache(c *Cache) Option { return func(s *Service) { s.cache = c } }

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(store Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, log: log, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates dto, then inserts the view with a unique route in one
// transaction. When the view is the homepage, the previous homepage flag is
// cleared in the same transaction. Nothing touches the store if validation fails.
func (s *Service) Create(ctx context.Context, dto CreateViewDTO) (*models.ViewModel, error) {
	candidate, err := dto.toModel()
	if err != nil {
		s.log.Debug("view rejected", zap.Error(err))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.create(ctx, candidate)
	if err != nil {
		s.logFailure("create view failed", err, zap.String("route", candidate.Route))
		return nil, err
	}

	s.cache.invalidate(ctx, v.Route, v.IsHomepage)
	s.log.Info("view created",
		zap.String("id", v.ID),
		zap.String("route", v.Route),
		zap.Bool("homepage", v.IsHomepage),
	)
	return v, nil
}

func (s *Service) create(ctx context.Context, v *models.ViewModel) (*models.ViewModel, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, internalError("begin transaction", err)
	}
	shouldRollback := true
	defer func() {
		if !shouldRollback {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Debug("rollback after failed create", zap.Error(rbErr))
		}
	}()

	route, err := resolveRoute(ctx, tx, v.Route)
	if err != nil {
		return nil, err
	}
	v.Route = route

	homepage := v.IsHomepage
	v.IsHomepage = false
	if err := tx.Insert(ctx, v); err != nil {
		if errors.Is(err, ErrDuplicateRoute) {
			return nil, conflictError("route already taken", err)
		}
		return nil, internalError("insert view", err)
	}

	if homepage {
		if _, err := tx.ClearHomepage(ctx); err != nil {
			return nil, internalError("clear homepage", err)
		}
		if err := tx.SetHomepage(ctx, v.ID); err != nil {
			return nil, internalError("set homepage", err)
		}
		v.IsHomepage = true
	}

	if err := tx.Commit(); err != nil {
		return nil, internalError("commit transaction", err)
	}
	shouldRollback = false
	return v, nil
}

// GetByRoute returns the public view at route.
func (s *Service) GetByRoute(ctx context.Context, route string) (*models.ViewModel, error) {
	route = NormalizeRoute(route)
	if route == "" {
		return nil, notFoundError("view not found")
	}
	cached, t, ok := s.cache.route(ctx, route)
	if ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.store.FindByRoute(ctx, route, publicVisibility)
	if err != nil {
		return nil, s.lookupError("get view by route", err, zap.String("route", route))
	}
	s.cache.store(ctx, t, v)
	return v, nil
}

// GetHomepage returns the homepage view when it is public.
func (s *Service) GetHomepage(ctx context.Context) (*models.ViewModel, error) {
	cached, t, ok := s.cache.homepage(ctx)
	if ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.store.FindHomepage(ctx, publicVisibility)
	if err != nil {
		return nil, s.lookupError("get homepage", err)
	}
	s.cache.store(ctx, t, v)
	return v, nil
}

// GetByID returns a view of any visibility.
func (s *Service) GetByID(ctx context.Context, id string) (*models.ViewModel, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, validationError(map[string]string{"id": "must be a UUID"})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.store.FindByID(ctx, parsed.String())
	if err != nil {
		return nil, s.lookupError("get view by id", err, zap.String("id", id))
	}
	return v, nil
}

// List pages through every view, newest first. An empty visibility lists all.
func (s *Service) List(ctx context.Context, visibility string, q pagination.Query) ([]models.ViewModel, response.Pagination, error) {
	filter := ListFilter{Page: pagination.Normalize(q)}
	if visibility != "" {
		v, err := models.ParseVisibility(visibility)
		if err != nil {
			return nil, response.Pagination{}, validationError(map[string]string{
				"visibility": "must be one of Public, Unlisted, Hidden",
			})
		}
		filter.Visibility = v
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	views, pag, err := s.store.List(ctx, filter)
	if err != nil {
		s.log.Error("list views failed", zap.Error(err))
		return nil, response.Pagination{}, internalError("list views", err)
	}
	return views, pag, nil
}

func (s *Service) lookupError(op string, err error, fields ...zap.Field) error {
	if errors.Is(err, ErrRowNotFound) {
		return notFoundError("view not found")
	}
	wrapped := internalError(op, err)
	s.logFailure(op+" failed", wrapped, fields...)
	return wrapped
}

func (s *Service) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if KindOf(err) == KindInternal {
		s.log.Error(msg, fields...)
		return
	}
	s.log.Debug(msg, fields...)
}
