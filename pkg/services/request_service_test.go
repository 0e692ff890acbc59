package services

import (
	"testing"

	"tms/pkg/errs"
	"tms/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestFixture struct {
	svc      RequestService
	requests *fakeRequestRepo
	buses    *fakeBusRepo
	users    *fakeUserRepo
}

// User 1 and 2 are students, 3 is staff, 4 a driver, 5 an admin.
// Bus-01 takes anyone, Bus-02 is students only and seats two, Bus-03 is a
// single-seat shuttle.
func newRequestFixture() *requestFixture {
	users := newFakeUserRepo(
		models.User{ID: 1, Name: "Ada", Email: "ada@campus.edu", Role: models.RoleStudent},
		models.User{ID: 2, Name: "Ben", Email: "ben@campus.edu", Role: models.RoleStudent},
		models.User{ID: 3, Name: "Cleo", Email: "cleo@campus.edu", Role: models.RoleStaff},
		models.User{ID: 4, Name: "Dan", Email: "dan@campus.edu", Role: models.RoleDriver},
		models.User{ID: 5, Name: "Eve", Email: "eve@campus.edu", Role: models.RoleAdmin},
	)
	buses := newFakeBusRepo(
		models.Bus{ID: "Bus-01", Plate: "CE 123 AB", Capacity: 3, StudentBus: true, StaffBus: true},
		models.Bus{ID: "Bus-02", Plate: "CE 456 CD", Capacity: 2, StudentBus: true},
		models.Bus{ID: "Bus-03", Plate: "CE 789 EF", Capacity: 1, StudentBus: true},
	)
	routes := newFakeRouteRepo(
		models.Route{ID: "molyko", Name: "Molyko Line", Stops: []string{"Mile 17", "Checkpoint", "Campus"}},
	)
	requests := newFakeRequestRepo(buses)

	return &requestFixture{
		svc:      NewRequestService(requests, buses, routes, users),
		requests: requests,
		buses:    buses,
		users:    users,
	}
}

func (fx *requestFixture) pending(t *testing.T, requesterID int) models.BusRequest {
	t.Helper()
	req, err := fx.svc.Create(requesterID, models.CreateBusRequest{
		RouteID:            "molyko",
		Stop:               "Checkpoint",
		PreferredDeparture: "07:30",
	})
	require.NoError(t, err)
	return req
}

func (fx *requestFixture) roster(t *testing.T, busID string) []models.Passenger {
	t.Helper()
	bus, err := fx.buses.GetByID(busID)
	require.NoError(t, err)
	return bus.Passengers
}

func TestCreateRequest(t *testing.T) {
	fx := newRequestFixture()

	req, err := fx.svc.Create(1, models.CreateBusRequest{
		RouteID:            "molyko",
		Stop:               "Mile 17",
		PreferredDeparture: "16:45",
		Notes:              "evening lab session",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, 1, req.RequesterID)
	assert.Equal(t, "Ada", req.RequesterName)
	assert.Equal(t, "Molyko Line", req.RouteName)
	assert.Nil(t, req.AssignedBusID)
	assert.Empty(t, req.Passengers)

	mine, err := fx.svc.ListMine(1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreateRequestValidation(t *testing.T) {
	fx := newRequestFixture()
	var verr *errs.ValidationError

	_, err := fx.svc.Create(1, models.CreateBusRequest{})
	assert.ErrorAs(t, err, &verr)

	_, err = fx.svc.Create(1, models.CreateBusRequest{RouteID: "no-such-route"})
	assert.ErrorAs(t, err, &verr)

	_, err = fx.svc.Create(1, models.CreateBusRequest{RouteID: "molyko", Stop: "Elsewhere"})
	assert.ErrorAs(t, err, &verr)

	_, err = fx.svc.Create(1, models.CreateBusRequest{RouteID: "molyko", PreferredDeparture: "25:00"})
	assert.ErrorAs(t, err, &verr)

	_, err = fx.svc.Create(1, models.CreateBusRequest{RouteID: "molyko", PreferredDeparture: "half past"})
	assert.ErrorAs(t, err, &verr)
}

func TestDecideForceIncludesRequester(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	// Reviewer picks only Ben; Ada rides anyway.
	updated, err := fx.svc.Decide(req.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-01",
		AssignedTrip:         models.TripUp,
		AssignedPassengerIDs: []int{2},
	})
	require.NoError(t, err)

	require.NotNil(t, updated.AssignedBusID)
	assert.Equal(t, "Bus-01", *updated.AssignedBusID)
	assert.Equal(t, models.TripUp, updated.AssignedTrip)

	ids := passengerIDs(updated.Passengers)
	assert.Equal(t, []int{2, 1}, ids)
	assert.Equal(t, ids, passengerIDs(fx.roster(t, "Bus-01")))
}

func TestDecideDeduplicatesPassengers(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	updated, err := fx.svc.Decide(req.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-01",
		AssignedPassengerIDs: []int{2, 2, 1, 2},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 1}, passengerIDs(updated.Passengers))
	assert.Len(t, fx.roster(t, "Bus-01"), 2)
}

func TestDecideCapacityExceeded(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	// Bus-02 seats two; requester plus two others is three.
	_, err := fx.svc.Decide(req.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-02",
		AssignedPassengerIDs: []int{2, 6},
	})

	var verr *errs.ValidationError
	assert.ErrorAs(t, err, &verr) // user 6 does not exist

	fx.users.users[6] = models.User{ID: 6, Name: "Fay", Email: "fay@campus.edu", Role: models.RoleStudent}

	_, err = fx.svc.Decide(req.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-02",
		AssignedPassengerIDs: []int{2, 6},
	})
	var cerr *errs.CapacityExceededError
	require.ErrorAs(t, err, &cerr)

	// Nothing committed: request still pending, roster untouched.
	stored, err := fx.svc.Get(req.ID, 1, models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.AssignedBusID)
	assert.Empty(t, fx.roster(t, "Bus-02"))
}

func TestDecideCapacityCountsExistingRoster(t *testing.T) {
	fx := newRequestFixture()

	// Ben's approved request already fills one of Bus-02's two seats.
	benReq := fx.pending(t, 2)
	_, err := fx.svc.Decide(benReq.ID, models.Decision{
		Status:        models.StatusApproved,
		AssignedBusID: "Bus-02",
	})
	require.NoError(t, err)

	// Ada alone still fits.
	adaReq := fx.pending(t, 1)
	_, err = fx.svc.Decide(adaReq.ID, models.Decision{
		Status:        models.StatusApproved,
		AssignedBusID: "Bus-02",
	})
	require.NoError(t, err)
	assert.Len(t, fx.roster(t, "Bus-02"), 2)

	// A third rider does not.
	fx.users.users[6] = models.User{ID: 6, Name: "Fay", Email: "fay@campus.edu", Role: models.RoleStudent}
	fayReq := fx.pending(t, 6)
	_, err = fx.svc.Decide(fayReq.ID, models.Decision{
		Status:        models.StatusApproved,
		AssignedBusID: "Bus-02",
	})
	var cerr *errs.CapacityExceededError
	assert.ErrorAs(t, err, &cerr)
}

func TestDecideReapprovalIsIdempotent(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	dec := models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-02",
		AssignedPassengerIDs: []int{2},
	}

	_, err := fx.svc.Decide(req.ID, dec)
	require.NoError(t, err)

	// The same decision again must pass capacity: its own previous seats
	// are released before counting.
	updated, err := fx.svc.Decide(req.ID, dec)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 1}, passengerIDs(updated.Passengers))
	assert.Len(t, fx.roster(t, "Bus-02"), 2)
}

func TestDecideCountsSeatsHeldByOtherRequests(t *testing.T) {
	fx := newRequestFixture()

	// Ben's own request fills the single seat on Bus-03.
	benReq := fx.pending(t, 2)
	_, err := fx.svc.Decide(benReq.ID, models.Decision{
		Status:        models.StatusApproved,
		AssignedBusID: "Bus-03",
	})
	require.NoError(t, err)

	// Ada rides Bus-01 with Ben along, so Ben now sits on both buses
	// through different requests.
	adaReq := fx.pending(t, 1)
	_, err = fx.svc.Decide(adaReq.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-01",
		AssignedPassengerIDs: []int{2},
	})
	require.NoError(t, err)

	// Moving Ada onto Bus-03 must fail: Ben's seat there belongs to his
	// own request and re-deciding Ada's releases nothing on Bus-03.
	_, err = fx.svc.Decide(adaReq.ID, models.Decision{
		Status:        models.StatusApproved,
		AssignedBusID: "Bus-03",
	})
	var cerr *errs.CapacityExceededError
	require.ErrorAs(t, err, &cerr)

	assert.Equal(t, []int{2}, passengerIDs(fx.roster(t, "Bus-03")))
	assert.Equal(t, []int{2, 1}, passengerIDs(fx.roster(t, "Bus-01")))

	stored, err := fx.svc.Get(adaReq.ID, 1, models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "Bus-01", *stored.AssignedBusID)
}

func TestDecideReassignmentMovesRoster(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	_, err := fx.svc.Decide(req.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-01",
		AssignedPassengerIDs: []int{2},
	})
	require.NoError(t, err)
	require.Len(t, fx.roster(t, "Bus-01"), 2)

	updated, err := fx.svc.Decide(req.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-02",
		AssignedPassengerIDs: []int{2},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bus-02", *updated.AssignedBusID)
	assert.Empty(t, fx.roster(t, "Bus-01"))
	assert.Equal(t, []int{2, 1}, passengerIDs(fx.roster(t, "Bus-02")))
}

func TestDecideRejectionReleasesSeats(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	_, err := fx.svc.Decide(req.ID, models.Decision{
		Status:        models.StatusApproved,
		AssignedBusID: "Bus-01",
	})
	require.NoError(t, err)
	require.Len(t, fx.roster(t, "Bus-01"), 1)

	updated, err := fx.svc.Decide(req.ID, models.Decision{
		Status:     models.StatusRejected,
		AdminNotes: "route suspended this week",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, updated.Status)
	assert.Nil(t, updated.AssignedBusID)
	assert.Empty(t, updated.AssignedTrip)
	assert.Equal(t, "route suspended this week", updated.AdminNotes)
	assert.Empty(t, fx.roster(t, "Bus-01"))
}

func TestDecideRoleEligibility(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	// Cleo is staff; Bus-02 is students only.
	_, err := fx.svc.Decide(req.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-02",
		AssignedPassengerIDs: []int{3},
	})
	var verr *errs.ValidationError
	assert.ErrorAs(t, err, &verr)

	// Dan is a driver and can never be a passenger, on any bus.
	_, err = fx.svc.Decide(req.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-01",
		AssignedPassengerIDs: []int{4},
	})
	assert.ErrorAs(t, err, &verr)
}

func TestDecideValidation(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)
	var verr *errs.ValidationError

	_, err := fx.svc.Decide(req.ID, models.Decision{Status: "maybe"})
	assert.ErrorAs(t, err, &verr)

	_, err = fx.svc.Decide(req.ID, models.Decision{
		Status:       models.StatusApproved,
		AssignedTrip: "sideways",
	})
	assert.ErrorAs(t, err, &verr)

	var nerr *errs.NotFoundError
	_, err = fx.svc.Decide("no-such-request", models.Decision{Status: models.StatusApproved})
	assert.ErrorAs(t, err, &nerr)

	_, err = fx.svc.Decide(req.ID, models.Decision{
		Status:        models.StatusApproved,
		AssignedBusID: "Bus-99",
	})
	assert.ErrorAs(t, err, &nerr)
}

func TestDecideApprovalWithoutBus(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	updated, err := fx.svc.Decide(req.ID, models.Decision{
		Status:       models.StatusApproved,
		AssignedTrip: models.TripDown,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, updated.Status)
	assert.Nil(t, updated.AssignedBusID)
	// Trip direction is meaningless without a bus.
	assert.Empty(t, updated.AssignedTrip)
	assert.Equal(t, []int{1}, passengerIDs(updated.Passengers))
}

func TestDecideConcurrentConflict(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	// Another writer bumps the bus version between the engine's read and
	// its commit.
	fx.requests.beforeApply = func() {
		fx.buses.buses["Bus-01"].Version++
	}

	_, err := fx.svc.Decide(req.ID, models.Decision{
		Status:        models.StatusApproved,
		AssignedBusID: "Bus-01",
	})

	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)

	stored, err := fx.svc.Get(req.ID, 1, models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, fx.roster(t, "Bus-01"))
}

func TestListAllRequiresReviewer(t *testing.T) {
	fx := newRequestFixture()
	fx.pending(t, 1)

	var aerr *errs.AuthorizationError
	_, err := fx.svc.ListAll(models.RoleStudent)
	assert.ErrorAs(t, err, &aerr)

	_, err = fx.svc.ListAll(models.RoleDriver)
	assert.ErrorAs(t, err, &aerr)

	items, err := fx.svc.ListAll(models.RoleStaff)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = fx.svc.ListAll(models.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGetRequestVisibility(t *testing.T) {
	fx := newRequestFixture()
	req := fx.pending(t, 1)

	_, err := fx.svc.Get(req.ID, 1, models.RoleStudent)
	assert.NoError(t, err)

	var aerr *errs.AuthorizationError
	_, err = fx.svc.Get(req.ID, 2, models.RoleStudent)
	assert.ErrorAs(t, err, &aerr)

	_, err = fx.svc.Get(req.ID, 5, models.RoleAdmin)
	assert.NoError(t, err)
}

func TestRosterNeverHoldsDuplicates(t *testing.T) {
	fx := newRequestFixture()

	// Two requests assign overlapping passengers to the same bus; the
	// roster keeps each rider once.
	first := fx.pending(t, 1)
	_, err := fx.svc.Decide(first.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-01",
		AssignedPassengerIDs: []int{2},
	})
	require.NoError(t, err)

	second := fx.pending(t, 2)
	_, err = fx.svc.Decide(second.ID, models.Decision{
		Status:               models.StatusApproved,
		AssignedBusID:        "Bus-01",
		AssignedPassengerIDs: []int{3},
	})
	require.NoError(t, err)

	roster := fx.roster(t, "Bus-01")
	seen := map[int]int{}
	for _, p := range roster {
		seen[p.UserID]++
	}
	for id, n := range seen {
		assert.Equalf(t, 1, n, "user %d appears %d times", id, n)
	}
	assert.Len(t, roster, 3)
}

func passengerIDs(passengers []models.Passenger) []int {
	ids := make([]int, 0, len(passengers))
	for _, p := range passengers {
		ids = append(ids, p.UserID)
	}
	return ids
}
