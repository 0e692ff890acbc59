package models

type Route struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Stops []string `json:"stops"`
}

type RouteUpsertRequest struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Stops []string `json:"stops"`
}
