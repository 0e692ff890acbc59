package services

import (
	"time"

	"tms/pkg/errs"
	"tms/pkg/models"
	"tms/pkg/repository"

	"github.com/google/uuid"
)

// RequestService owns the bus-request lifecycle: creation by students and
// staff, and reviewer decisions that assign buses and passengers. Decide is
// the only writer of bus rosters besides the direct manage-passengers path
// on BusService.
type RequestService interface {
	Create(requesterID int, in models.CreateBusRequest) (models.BusRequest, error)
	ListMine(requesterID int) ([]models.BusRequest, error)
	ListAll(callerRole string) ([]models.BusRequest, error)
	Get(id string, callerID int, callerRole string) (models.BusRequest, error)
	Decide(id string, dec models.Decision) (models.BusRequest, error)
}

type requestService struct {
	requests repository.RequestRepository
	buses    repository.BusRepository
	routes   repository.RouteRepository
	users    repository.UserRepository
}

func NewRequestService(
	requests repository.RequestRepository,
	buses repository.BusRepository,
	routes repository.RouteRepository,
	users repository.UserRepository,
) RequestService {
	return &requestService{requests: requests, buses: buses, routes: routes, users: users}
}

func (s *requestService) Create(requesterID int, in models.CreateBusRequest) (models.BusRequest, error) {
	if in.RouteID == "" {
		return models.BusRequest{}, errs.Validation("routeId is required")
	}

	route, err := s.routes.GetByID(in.RouteID)
	if err != nil {
		return models.BusRequest{}, errs.Validation("unknown route %q", in.RouteID)
	}

	if in.Stop != "" && len(route.Stops) > 0 && !containsStop(route.Stops, in.Stop) {
		return models.BusRequest{}, errs.Validation("stop %q is not on route %s", in.Stop, route.Name)
	}

	if in.PreferredDeparture != "" && !validTimeOfDay(in.PreferredDeparture) {
		return models.BusRequest{}, errs.Validation("preferredDeparture must be HH:MM")
	}

	requester, err := s.users.GetUserByID(requesterID)
	if err != nil {
		return models.BusRequest{}, err
	}

	req := models.BusRequest{
		ID:                 uuid.NewString(),
		RequesterID:        requester.ID,
		RequesterName:      requester.Name,
		RequesterEmail:     requester.Email,
		RouteID:            route.ID,
		RouteName:          route.Name,
		Stop:               in.Stop,
		PreferredDeparture: in.PreferredDeparture,
		Notes:              in.Notes,
		Status:             models.StatusPending,
		Passengers:         []models.Passenger{},
		CreatedAt:          time.Now(),
	}

	if err := s.requests.Create(req); err != nil {
		return models.BusRequest{}, err
	}
	return req, nil
}

func (s *requestService) ListMine(requesterID int) ([]models.BusRequest, error) {
	return s.requests.ListByRequester(requesterID)
}

func (s *requestService) ListAll(callerRole string) ([]models.BusRequest, error) {
	if !models.ReviewerRole(callerRole) {
		return nil, errs.Authorization("only admins and staff may list all requests")
	}
	return s.requests.ListAll()
}

func (s *requestService) Get(id string, callerID int, callerRole string) (models.BusRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return models.BusRequest{}, err
	}
	if !models.ReviewerRole(callerRole) && req.RequesterID != callerID {
		return models.BusRequest{}, errs.Authorization("not your request")
	}
	return req, nil
}

// Decide validates and applies a reviewer decision. The request update and
// any roster changes commit together; on any failure both stay untouched.
func (s *requestService) Decide(id string, dec models.Decision) (models.BusRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return models.BusRequest{}, err
	}

	if !models.ValidStatus(dec.Status) {
		return models.BusRequest{}, errs.Validation("invalid status %q", dec.Status)
	}
	if dec.AssignedTrip != "" && !models.ValidTrip(dec.AssignedTrip) {
		return models.BusRequest{}, errs.Validation("invalid trip %q", dec.AssignedTrip)
	}

	passengers, err := s.resolvePassengers(dec.AssignedPassengerIDs, req.RequesterID)
	if err != nil {
		return models.BusRequest{}, err
	}

	busVersions := map[string]int{}
	var assignedBusID *string

	if dec.Status == models.StatusApproved && dec.AssignedBusID != "" {
		bus, err := s.buses.GetByID(dec.AssignedBusID)
		if err != nil {
			return models.BusRequest{}, err
		}

		for _, p := range passengers {
			if !bus.AcceptsRole(p.Role) {
				return models.BusRequest{}, errs.Validation("bus %s does not serve %s passengers", bus.ID, p.Role)
			}
		}

		if count := rosterSizeAfter(bus.Passengers, req.ID, passengers); count > bus.Capacity {
			return models.BusRequest{}, errs.CapacityExceeded(
				"bus %s holds %d passengers, assignment needs %d", bus.ID, bus.Capacity, count)
		}

		busVersions[bus.ID] = bus.Version
		id := bus.ID
		assignedBusID = &id
	}

	// Releasing seats on a previously assigned bus also changes its roster,
	// so that bus's version joins the check.
	if req.AssignedBusID != nil {
		oldID := *req.AssignedBusID
		if _, tracked := busVersions[oldID]; !tracked {
			if oldBus, err := s.buses.GetByID(oldID); err == nil {
				busVersions[oldID] = oldBus.Version
			}
		}
	}

	req.Status = dec.Status
	req.AssignedBusID = assignedBusID
	req.AssignedTrip = ""
	if assignedBusID != nil {
		req.AssignedTrip = dec.AssignedTrip
	}
	req.AdminNotes = dec.AdminNotes
	req.Passengers = passengers

	if err := s.requests.ApplyDecision(req, busVersions); err != nil {
		return models.BusRequest{}, err
	}
	return req, nil
}

// resolvePassengers builds the effective passenger set: the reviewer's list
// with the requester force-included, deduplicated, every id resolved against
// the user directory.
func (s *requestService) resolvePassengers(ids []int, requesterID int) ([]models.Passenger, error) {
	ordered := make([]int, 0, len(ids)+1)
	seen := make(map[int]bool, len(ids)+1)
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	if !seen[requesterID] {
		ordered = append(ordered, requesterID)
	}

	users, err := s.users.GetUsersByIDs(ordered)
	if err != nil {
		return nil, err
	}

	passengers := make([]models.Passenger, 0, len(ordered))
	for _, id := range ordered {
		u, ok := users[id]
		if !ok {
			return nil, errs.Validation("unknown passenger id %d", id)
		}
		if !models.RiderRole(u.Role) {
			return nil, errs.Validation("user %s has role %s and cannot ride", u.Email, u.Role)
		}
		passengers = append(passengers, models.Passenger{
			UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role,
		})
	}
	return passengers, nil
}

// rosterSizeAfter counts the roster as it would stand after the decision:
// the bus's current entries minus those this request owns, plus the new
// effective set, counted once per user. Seats held through other requests
// keep counting even when they name the same riders; the commit only
// deletes rows owned by the request being decided.
func rosterSizeAfter(current []models.Passenger, requestID string, incoming []models.Passenger) int {
	kept := make(map[int]bool, len(current)+len(incoming))
	for _, p := range incoming {
		kept[p.UserID] = true
	}
	for _, p := range current {
		if p.RequestID == nil || *p.RequestID != requestID {
			kept[p.UserID] = true
		}
	}
	return len(kept)
}

func containsStop(stops []string, stop string) bool {
	for _, s := range stops {
		if s == stop {
			return true
		}
	}
	return false
}

func validTimeOfDay(v string) bool {
	if len(v) != 5 || v[2] != ':' {
		return false
	}
	h := int(v[0]-'0')*10 + int(v[1]-'0')
	m := int(v[3]-'0')*10 + int(v[4]-'0')
	for _, i := range []int{0, 1, 3, 4} {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return h < 24 && m < 60
}
