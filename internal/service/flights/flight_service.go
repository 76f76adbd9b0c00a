package flights

import (
	"context"

	"github.com/nvoronina/flightbooking/internal/domain"
	"github.com/nvoronina/flightbooking/internal/repository"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, criteria repository.SearchCriteria) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
}

// Cache is the slice of the flight cache this service needs; the Redis
// implementation lives in internal/cache.
type Cache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
}

type FlightService struct {
	repo  repository.FlightRepository
	cache Cache
}

func NewFlightService(repo repository.FlightRepository, cache Cache) *FlightService {
	return &FlightService{repo: repo, cache: cache}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, flights)
	}
	return flights, nil
}

// Search always goes to the store: criteria combinations are too sparse
// to cache usefully.
func (s *FlightService) Search(ctx context.Context, criteria repository.SearchCriteria) ([]domain.Flight, error) {
	return s.repo.Search(ctx, criteria)
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

var _ FlightUseCase = (*FlightService)(nil)
