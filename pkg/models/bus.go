package models

import "time"

// Trip directions. Each direction has its own driver slot on the bus.
const (
	TripUp   = "up"
	TripDown = "down"
)

func ValidTrip(trip string) bool {
	return trip == TripUp || trip == TripDown
}

// Passenger is one roster entry: the user id plus denormalized display
// metadata resolved from the user directory at assignment time. RequestID
// is the request that owns the entry, nil for entries placed through the
// direct manage-passengers path; re-deciding a request only releases the
// seats it owns.
type Passenger struct {
	UserID    int     `json:"userId"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	RequestID *string `json:"-"`
}

// Bus is the authoritative roster holder. Version backs the optimistic
// concurrency check on roster and field writes; position updates do not
// bump it.
type Bus struct {
	ID             string      `json:"id"`
	Plate          string      `json:"plate"`
	Capacity       int         `json:"capacity"`
	Route          string      `json:"route"`
	Departure      string      `json:"departure"`
	UpDriver       *int        `json:"upDriver"`
	DownDriver     *int        `json:"downDriver"`
	UpDriverName   string      `json:"upDriverName,omitempty"`
	DownDriverName string      `json:"downDriverName,omitempty"`
	Stops          []string    `json:"stops"`
	StudentBus     bool        `json:"studentBus"`
	StaffBus       bool        `json:"staffBus"`
	Passengers     []Passenger `json:"assignedPassengers"`
	Lat            *float64    `json:"lat"`
	Lng            *float64    `json:"lng"`
	Version        int         `json:"version"`
	CreatedAt      time.Time   `json:"created_at"`
}

// HasFix reports whether the bus has a usable last known position.
func (b Bus) HasFix() bool {
	return b.Lat != nil && b.Lng != nil
}

// AcceptsRole checks the bus eligibility flags against a passenger role.
func (b Bus) AcceptsRole(role string) bool {
	switch role {
	case RoleStudent:
		return b.StudentBus
	case RoleStaff:
		return b.StaffBus
	}
	return false
}

type BusCreateRequest struct {
	ID         string   `json:"id"`
	Plate      string   `json:"plate"`
	Capacity   int      `json:"capacity"`
	Route      string   `json:"route"`
	Departure  string   `json:"departure"`
	UpDriver   *int     `json:"upDriver"`
	DownDriver *int     `json:"downDriver"`
	Stops      []string `json:"stops"`
	StudentBus bool     `json:"studentBus"`
	StaffBus   bool     `json:"staffBus"`
}

// BusUpdateRequest carries partial edits; nil means "leave unchanged".
type BusUpdateRequest struct {
	Plate      *string   `json:"plate,omitempty"`
	Capacity   *int      `json:"capacity,omitempty"`
	Route      *string   `json:"route,omitempty"`
	Departure  *string   `json:"departure,omitempty"`
	UpDriver   *int      `json:"upDriver,omitempty"`
	DownDriver *int      `json:"downDriver,omitempty"`
	Stops      *[]string `json:"stops,omitempty"`
	StudentBus *bool     `json:"studentBus,omitempty"`
	StaffBus   *bool     `json:"staffBus,omitempty"`
}

type SetPassengersRequest struct {
	AssignedPassengerIDs []int `json:"assignedPassengerIds"`
}

type LocationUpdateRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BusPosition is the slim projection served to the live map view and
// broadcast over the hub.
type BusPosition struct {
	BusID     string  `json:"busId"`
	Plate     string  `json:"plate"`
	Route     string  `json:"route"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	UpdatedAt int64   `json:"updatedAt"`
}

// NearbyBus pairs a bus with its haversine distance from the query point.
type NearbyBus struct {
	Bus
	DistanceKm float64 `json:"distanceKm"`
}
