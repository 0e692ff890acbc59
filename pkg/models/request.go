package models

import "time"

// Request lifecycle. Any status may be set to any other by a reviewer;
// there is no terminal state.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// BusRequest is a student/staff bus-scheduling request. Passengers always
// include the requester once a decision has been applied.
type BusRequest struct {
	ID                 string      `json:"id"`
	RequesterID        int         `json:"requesterId"`
	RequesterName      string      `json:"requesterName,omitempty"`
	RequesterEmail     string      `json:"requesterEmail,omitempty"`
	RouteID            string      `json:"routeId"`
	RouteName          string      `json:"routeName"`
	Stop               string      `json:"stop,omitempty"`
	PreferredDeparture string      `json:"preferredDeparture,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	Status             string      `json:"status"`
	AssignedBusID      *string     `json:"assignedBusId"`
	AssignedTrip       string      `json:"assignedTrip,omitempty"`
	Passengers         []Passenger `json:"assignedPassengers"`
	AdminNotes         string      `json:"adminNotes,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
}

type CreateBusRequest struct {
	RouteID            string `json:"routeId"`
	Stop               string `json:"stop"`
	PreferredDeparture string `json:"preferredDeparture"`
	Notes              string `json:"notes"`
}

// Decision is the reviewer's submission on a request.
type Decision struct {
	Status               string `json:"status"`
	AssignedBusID        string `json:"assignedBusId"`
	AssignedTrip         string `json:"assignedTrip"`
	AssignedPassengerIDs []int  `json:"assignedPassengerIds"`
	AdminNotes           string `json:"adminNotes"`
}
