package services

import (
	"sort"
	"time"

	"tms/pkg/broker"
	"tms/pkg/cache"
	"tms/pkg/errs"
	"tms/pkg/geo"
	"tms/pkg/models"
	"tms/pkg/repository"

	"github.com/google/uuid"
)

const (
	liveCacheKey = "buses:live"
	eventChannel = "transit.events"
)

type BusService interface {
	List() ([]models.Bus, error)
	Get(id string) (models.Bus, error)
	Create(in models.BusCreateRequest) (models.Bus, error)
	Update(id string, in models.BusUpdateRequest) (models.Bus, error)
	Delete(id string) error

	GetPassengers(busID string) ([]models.Passenger, error)
	SetPassengers(busID string, passengerIDs []int) (models.Bus, error)

	Nearby(lat, lng, radiusKm float64) ([]models.NearbyBus, error)
	UpdateLocation(busID string, callerID int, callerRole string, lat, lng float64) error
	Live() ([]models.BusPosition, error)
}

type busService struct {
	repo   repository.BusRepository
	users  repository.UserRepository
	redis  *cache.Redis
	events *broker.Broker
}

func NewBusService(repo repository.BusRepository, users repository.UserRepository, redis *cache.Redis, events *broker.Broker) BusService {
	return &busService{repo: repo, users: users, redis: redis, events: events}
}

func (s *busService) List() ([]models.Bus, error) {
	return s.repo.List()
}

func (s *busService) Get(id string) (models.Bus, error) {
	return s.repo.GetByID(id)
}

func (s *busService) Create(in models.BusCreateRequest) (models.Bus, error) {
	if in.Capacity <= 0 {
		return models.Bus{}, errs.Validation("capacity must be positive")
	}
	if in.ID == "" {
		in.ID = "Bus-" + uuid.NewString()[:8]
	}

	if err := s.checkDriver(in.UpDriver); err != nil {
		return models.Bus{}, err
	}
	if err := s.checkDriver(in.DownDriver); err != nil {
		return models.Bus{}, err
	}

	bus := models.Bus{
		ID:         in.ID,
		Plate:      in.Plate,
		Capacity:   in.Capacity,
		Route:      in.Route,
		Departure:  in.Departure,
		UpDriver:   in.UpDriver,
		DownDriver: in.DownDriver,
		Stops:      in.Stops,
		StudentBus: in.StudentBus,
		StaffBus:   in.StaffBus,
	}
	if bus.Stops == nil {
		bus.Stops = []string{}
	}

	if err := s.repo.Create(bus); err != nil {
		return models.Bus{}, err
	}
	return s.repo.GetByID(bus.ID)
}

func (s *busService) Update(id string, in models.BusUpdateRequest) (models.Bus, error) {
	bus, err := s.repo.GetByID(id)
	if err != nil {
		return models.Bus{}, err
	}

	if in.Plate != nil {
		bus.Plate = *in.Plate
	}
	if in.Capacity != nil {
		bus.Capacity = *in.Capacity
	}
	if in.Route != nil {
		bus.Route = *in.Route
	}
	if in.Departure != nil {
		bus.Departure = *in.Departure
	}
	if in.UpDriver != nil {
		bus.UpDriver = in.UpDriver
	}
	if in.DownDriver != nil {
		bus.DownDriver = in.DownDriver
	}
	if in.Stops != nil {
		bus.Stops = *in.Stops
	}
	if in.StudentBus != nil {
		bus.StudentBus = *in.StudentBus
	}
	if in.StaffBus != nil {
		bus.StaffBus = *in.StaffBus
	}

	if bus.Capacity <= 0 {
		return models.Bus{}, errs.Validation("capacity must be positive")
	}
	if len(bus.Passengers) > bus.Capacity {
		return models.Bus{}, errs.CapacityExceeded(
			"bus %s already has %d passengers, capacity cannot drop to %d", bus.ID, len(bus.Passengers), bus.Capacity)
	}
	if err := s.checkDriver(bus.UpDriver); err != nil {
		return models.Bus{}, err
	}
	if err := s.checkDriver(bus.DownDriver); err != nil {
		return models.Bus{}, err
	}

	if err := s.repo.Update(bus); err != nil {
		return models.Bus{}, err
	}
	s.invalidateLive()
	return s.repo.GetByID(id)
}

func (s *busService) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.invalidateLive()
	return nil
}

func (s *busService) GetPassengers(busID string) ([]models.Passenger, error) {
	bus, err := s.repo.GetByID(busID)
	if err != nil {
		return nil, err
	}
	return bus.Passengers, nil
}

// SetPassengers replaces the roster wholesale, independent of any request.
// Used for ad-hoc admin adjustments; the same capacity and role invariants
// apply as on the decision path.
func (s *busService) SetPassengers(busID string, passengerIDs []int) (models.Bus, error) {
	bus, err := s.repo.GetByID(busID)
	if err != nil {
		return models.Bus{}, err
	}

	ordered := make([]int, 0, len(passengerIDs))
	seen := make(map[int]bool, len(passengerIDs))
	for _, id := range passengerIDs {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}

	if len(ordered) > bus.Capacity {
		return models.Bus{}, errs.CapacityExceeded(
			"bus %s holds %d passengers, got %d", bus.ID, bus.Capacity, len(ordered))
	}

	users, err := s.users.GetUsersByIDs(ordered)
	if err != nil {
		return models.Bus{}, err
	}

	passengers := make([]models.Passenger, 0, len(ordered))
	for _, id := range ordered {
		u, ok := users[id]
		if !ok {
			return models.Bus{}, errs.Validation("unknown passenger id %d", id)
		}
		if !models.RiderRole(u.Role) {
			return models.Bus{}, errs.Validation("user %s has role %s and cannot ride", u.Email, u.Role)
		}
		if !bus.AcceptsRole(u.Role) {
			return models.Bus{}, errs.Validation("bus %s does not serve %s passengers", bus.ID, u.Role)
		}
		passengers = append(passengers, models.Passenger{
			UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role,
		})
	}

	if err := s.repo.ReplaceRoster(bus.ID, bus.Version, passengers); err != nil {
		return models.Bus{}, err
	}

	bus.Passengers = passengers
	bus.Version++
	return bus, nil
}

// Nearby returns buses with a position fix within radiusKm of the point,
// closest first. Buses without a fix never qualify.
func (s *busService) Nearby(lat, lng, radiusKm float64) ([]models.NearbyBus, error) {
	if radiusKm <= 0 {
		return nil, errs.Validation("radius must be positive")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, errs.Validation("invalid coordinates")
	}

	buses, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	nearby := []models.NearbyBus{}
	for _, b := range buses {
		if !b.HasFix() {
			continue
		}
		d := geo.DistanceKm(lat, lng, *b.Lat, *b.Lng)
		if d <= radiusKm {
			nearby = append(nearby, models.NearbyBus{Bus: b, DistanceKm: d})
		}
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby, nil
}

// UpdateLocation records a driver position fix and fans it out to live
// viewers. Only the bus's own drivers (either trip slot) or an admin may
// report positions.
func (s *busService) UpdateLocation(busID string, callerID int, callerRole string, lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return errs.Validation("invalid coordinates")
	}

	bus, err := s.repo.GetByID(busID)
	if err != nil {
		return err
	}

	if callerRole != models.RoleAdmin {
		isDriver := (bus.UpDriver != nil && *bus.UpDriver == callerID) ||
			(bus.DownDriver != nil && *bus.DownDriver == callerID)
		if callerRole != models.RoleDriver || !isDriver {
			return errs.Authorization("not a driver of bus %s", busID)
		}
	}

	if err := s.repo.UpdateLocation(busID, lat, lng); err != nil {
		return err
	}
	s.invalidateLive()

	if s.events != nil {
		s.events.Broadcast(eventChannel, "bus.location", "transit", models.BusPosition{
			BusID:     bus.ID,
			Plate:     bus.Plate,
			Route:     bus.Route,
			Lat:       lat,
			Lng:       lng,
			UpdatedAt: time.Now().Unix(),
		})
	}
	return nil
}

func (s *busService) Live() ([]models.BusPosition, error) {
	if s.redis != nil {
		var cached []models.BusPosition
		if s.redis.Get(liveCacheKey, &cached) {
			return cached, nil
		}
	}

	positions, err := s.repo.ListLive()
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		s.redis.Set(liveCacheKey, positions, 1*time.Second) // 1s micro-cache
	}
	return positions, nil
}

func (s *busService) checkDriver(id *int) error {
	if id == nil {
		return nil
	}
	u, err := s.users.GetUserByID(*id)
	if err != nil {
		return errs.Validation("unknown driver id %d", *id)
	}
	if u.Role != models.RoleDriver {
		return errs.Validation("user %s is not a driver", u.Email)
	}
	return nil
}

func (s *busService) invalidateLive() {
	if s.redis != nil {
		s.redis.Del(liveCacheKey)
	}
}
