package services

import (
	"tms/pkg/errs"
	"tms/pkg/models"
	"tms/pkg/repository"
)

type RouteService interface {
	List() ([]models.Route, error)
	Get(id string) (models.Route, error)
	Create(in models.RouteUpsertRequest) (models.Route, error)
	Update(id string, in models.RouteUpsertRequest) (models.Route, error)
	Delete(id string) error
}

type routeService struct {
	repo repository.RouteRepository
}

func NewRouteService(repo repository.RouteRepository) RouteService {
	return &routeService{repo: repo}
}

func (s *routeService) List() ([]models.Route, error) {
	return s.repo.List()
}

func (s *routeService) Get(id string) (models.Route, error) {
	return s.repo.GetByID(id)
}

func (s *routeService) Create(in models.RouteUpsertRequest) (models.Route, error) {
	if in.ID == "" {
		return models.Route{}, errs.Validation("route id is required")
	}
	if in.Name == "" {
		return models.Route{}, errs.Validation("route name is required")
	}

	route := models.Route{ID: in.ID, Name: in.Name, Stops: in.Stops}
	if route.Stops == nil {
		route.Stops = []string{}
	}

	if err := s.repo.Create(route); err != nil {
		return models.Route{}, err
	}
	return route, nil
}

func (s *routeService) Update(id string, in models.RouteUpsertRequest) (models.Route, error) {
	route, err := s.repo.GetByID(id)
	if err != nil {
		return models.Route{}, err
	}

	if in.Name != "" {
		route.Name = in.Name
	}
	if in.Stops != nil {
		route.Stops = in.Stops
	}

	if err := s.repo.Update(route); err != nil {
		return models.Route{}, err
	}
	return route, nil
}

func (s *routeService) Delete(id string) error {
	return s.repo.Delete(id)
}
