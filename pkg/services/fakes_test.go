package services

import (
	"errors"
	"time"

	"tms/pkg/errs"
	"tms/pkg/models"
)

// In-memory repository fakes. They mirror the version-check semantics of the
// SQL layer so conflict and rollback behavior can be exercised without a
// database.

type fakeUserRepo struct {
	users     map[int]models.User
	passwords map[int]string
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[int]models.User{}, passwords: map[int]string{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) CreateUser(name, email, hashedPw, role string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return models.User{}, errors.New(`duplicate key value violates unique constraint "users_email_key"`)
		}
	}
	id := 1
	for existing := range f.users {
		if existing >= id {
			id = existing + 1
		}
	}
	u := models.User{ID: id, Name: name, Email: email, Role: role}
	f.users[id] = u
	f.passwords[id] = hashedPw
	return u, nil
}

func (f *fakeUserRepo) GetUserByEmail(email string) (models.User, string, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, f.passwords[u.ID], nil
		}
	}
	return models.User{}, "", errs.NotFound("user not found")
}

func (f *fakeUserRepo) GetUserByID(id int) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, errs.NotFound("user not found")
	}
	return u, nil
}

func (f *fakeUserRepo) GetUsersByIDs(ids []int) (map[int]models.User, error) {
	out := map[int]models.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeUserRepo) ListUsers() ([]models.User, error) {
	out := []models.User{}
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserRepo) CreateSession(userID int, refreshToken, userAgent, ip string, expiresAt time.Time) error {
	return nil
}

func (f *fakeUserRepo) GetSessionByToken(token string) (models.Session, models.User, error) {
	return models.Session{}, models.User{}, errs.NotFound("session not found")
}

func (f *fakeUserRepo) UpdateSession(id int, refreshToken string, expiresAt time.Time) error {
	return nil
}

func (f *fakeUserRepo) DeleteSessionByID(id int) error         { return nil }
func (f *fakeUserRepo) DeleteSessionByToken(token string) error { return nil }
func (f *fakeUserRepo) DeleteAllSessionsByUserID(id int) error  { return nil }
func (f *fakeUserRepo) DeleteExpiredSessions() error            { return nil }

func (f *fakeUserRepo) GetActiveSessionsByUserID(userID int) ([]models.Session, error) {
	return []models.Session{}, nil
}

type fakeRouteRepo struct {
	routes map[string]models.Route
}

func newFakeRouteRepo(routes ...models.Route) *fakeRouteRepo {
	f := &fakeRouteRepo{routes: map[string]models.Route{}}
	for _, r := range routes {
		f.routes[r.ID] = r
	}
	return f
}

func (f *fakeRouteRepo) List() ([]models.Route, error) {
	out := []models.Route{}
	for _, r := range f.routes {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRouteRepo) GetByID(id string) (models.Route, error) {
	r, ok := f.routes[id]
	if !ok {
		return models.Route{}, errs.NotFound("route %s not found", id)
	}
	return r, nil
}

func (f *fakeRouteRepo) Create(route models.Route) error {
	f.routes[route.ID] = route
	return nil
}

func (f *fakeRouteRepo) Update(route models.Route) error {
	if _, ok := f.routes[route.ID]; !ok {
		return errs.NotFound("route %s not found", route.ID)
	}
	f.routes[route.ID] = route
	return nil
}

func (f *fakeRouteRepo) Delete(id string) error {
	delete(f.routes, id)
	return nil
}

type fakeBusRepo struct {
	buses map[string]*models.Bus
}

func newFakeBusRepo(buses ...models.Bus) *fakeBusRepo {
	f := &fakeBusRepo{buses: map[string]*models.Bus{}}
	for i := range buses {
		b := buses[i]
		if b.Version == 0 {
			b.Version = 1
		}
		if b.Passengers == nil {
			b.Passengers = []models.Passenger{}
		}
		f.buses[b.ID] = &b
	}
	return f
}

func (f *fakeBusRepo) List() ([]models.Bus, error) {
	out := []models.Bus{}
	for _, b := range f.buses {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBusRepo) GetByID(id string) (models.Bus, error) {
	b, ok := f.buses[id]
	if !ok {
		return models.Bus{}, errs.NotFound("bus %s not found", id)
	}
	cp := *b
	cp.Passengers = append([]models.Passenger{}, b.Passengers...)
	return cp, nil
}

func (f *fakeBusRepo) Create(bus models.Bus) error {
	bus.Version = 1
	if bus.Passengers == nil {
		bus.Passengers = []models.Passenger{}
	}
	f.buses[bus.ID] = &bus
	return nil
}

func (f *fakeBusRepo) Update(bus models.Bus) error {
	stored, ok := f.buses[bus.ID]
	if !ok {
		return errs.NotFound("bus %s not found", bus.ID)
	}
	if stored.Version != bus.Version {
		return errs.Conflict("bus %s was modified concurrently", bus.ID)
	}
	bus.Passengers = stored.Passengers
	bus.Version++
	f.buses[bus.ID] = &bus
	return nil
}

func (f *fakeBusRepo) Delete(id string) error {
	if _, ok := f.buses[id]; !ok {
		return errs.NotFound("bus %s not found", id)
	}
	delete(f.buses, id)
	return nil
}

func (f *fakeBusRepo) ReplaceRoster(busID string, version int, passengers []models.Passenger) error {
	stored, ok := f.buses[busID]
	if !ok {
		return errs.NotFound("bus %s not found", busID)
	}
	if stored.Version != version {
		return errs.Conflict("bus %s was modified concurrently", busID)
	}
	stored.Passengers = append([]models.Passenger{}, passengers...)
	stored.Version++
	return nil
}

func (f *fakeBusRepo) UpdateLocation(busID string, lat, lng float64) error {
	stored, ok := f.buses[busID]
	if !ok {
		return errs.NotFound("bus %s not found", busID)
	}
	stored.Lat = &lat
	stored.Lng = &lng
	return nil
}

func (f *fakeBusRepo) ListLive() ([]models.BusPosition, error) {
	out := []models.BusPosition{}
	for _, b := range f.buses {
		if b.HasFix() {
			out = append(out, models.BusPosition{
				BusID: b.ID, Plate: b.Plate, Route: b.Route,
				Lat: *b.Lat, Lng: *b.Lng,
			})
		}
	}
	return out, nil
}

type fakeRequestRepo struct {
	reqs  map[string]*models.BusRequest
	buses *fakeBusRepo

	// beforeApply runs at the top of ApplyDecision, standing in for a
	// concurrent writer sneaking in between the engine's read and commit.
	beforeApply func()
}

func newFakeRequestRepo(buses *fakeBusRepo) *fakeRequestRepo {
	return &fakeRequestRepo{reqs: map[string]*models.BusRequest{}, buses: buses}
}

func (f *fakeRequestRepo) Create(req models.BusRequest) error {
	cp := req
	f.reqs[req.ID] = &cp
	return nil
}

func (f *fakeRequestRepo) GetByID(id string) (models.BusRequest, error) {
	r, ok := f.reqs[id]
	if !ok {
		return models.BusRequest{}, errs.NotFound("request %s not found", id)
	}
	cp := *r
	cp.Passengers = append([]models.Passenger{}, r.Passengers...)
	return cp, nil
}

func (f *fakeRequestRepo) ListByRequester(requesterID int) ([]models.BusRequest, error) {
	out := []models.BusRequest{}
	for _, r := range f.reqs {
		if r.RequesterID == requesterID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) ListAll() ([]models.BusRequest, error) {
	out := []models.BusRequest{}
	for _, r := range f.reqs {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRequestRepo) ApplyDecision(req models.BusRequest, busVersions map[string]int) error {
	if f.beforeApply != nil {
		f.beforeApply()
	}

	if _, ok := f.reqs[req.ID]; !ok {
		return errs.NotFound("request %s not found", req.ID)
	}

	for id, v := range busVersions {
		b, ok := f.buses.buses[id]
		if !ok {
			return errs.NotFound("bus %s not found", id)
		}
		if b.Version != v {
			return errs.Conflict("bus %s was modified concurrently", id)
		}
	}

	// Past version checks the commit cannot fail, so mutate freely. Only
	// entries owned by this request are released; seats held through other
	// requests stay, and inserting over an existing seat moves its
	// ownership here.
	for _, b := range f.buses.buses {
		kept := []models.Passenger{}
		for _, p := range b.Passengers {
			if p.RequestID == nil || *p.RequestID != req.ID {
				kept = append(kept, p)
			}
		}
		b.Passengers = kept
	}

	if req.AssignedBusID != nil {
		b := f.buses.buses[*req.AssignedBusID]
		owner := req.ID
		index := map[int]int{}
		for i, p := range b.Passengers {
			index[p.UserID] = i
		}
		for _, p := range req.Passengers {
			p.RequestID = &owner
			if i, ok := index[p.UserID]; ok {
				b.Passengers[i] = p
			} else {
				b.Passengers = append(b.Passengers, p)
			}
		}
	}

	for id := range busVersions {
		f.buses.buses[id].Version++
	}

	cp := req
	cp.Passengers = append([]models.Passenger{}, req.Passengers...)
	f.reqs[req.ID] = &cp
	return nil
}
