package repository

import (
	"database/sql"

	"tms/pkg/errs"
	"tms/pkg/models"

	"github.com/lib/pq"
)

type RequestRepository interface {
	Create(req models.BusRequest) error
	GetByID(id string) (models.BusRequest, error)
	ListByRequester(requesterID int) ([]models.BusRequest, error)
	ListAll() ([]models.BusRequest, error)

	// ApplyDecision commits a reviewer decision in one transaction: the
	// request row, the request's passenger assignments, and a version bump
	// on every bus whose roster is touched. busVersions maps bus id to the
	// version the engine read; a mismatch aborts with ConflictError and no
	// partial state.
	ApplyDecision(req models.BusRequest, busVersions map[string]int) error
}

type requestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) RequestRepository {
	return &requestRepository{db: db}
}

const requestColumns = `
	r.id, r.requester_id, u.name, u.email, r.route_id, r.route_name,
	r.stop, r.preferred_departure, r.notes, r.status,
	r.assigned_bus_id, r.assigned_trip, r.admin_notes, r.created_at`

func scanRequest(scanner interface{ Scan(...interface{}) error }) (models.BusRequest, error) {
	var req models.BusRequest
	err := scanner.Scan(
		&req.ID, &req.RequesterID, &req.RequesterName, &req.RequesterEmail,
		&req.RouteID, &req.RouteName, &req.Stop, &req.PreferredDeparture,
		&req.Notes, &req.Status, &req.AssignedBusID, &req.AssignedTrip,
		&req.AdminNotes, &req.CreatedAt,
	)
	return req, err
}

func (r *requestRepository) Create(req models.BusRequest) error {
	_, err := r.db.Exec(`
		INSERT INTO bus_requests (id, requester_id, route_id, route_name, stop, preferred_departure, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, req.ID, req.RequesterID, req.RouteID, req.RouteName, req.Stop, req.PreferredDeparture, req.Notes, req.Status, req.CreatedAt)
	return err
}

func (r *requestRepository) GetByID(id string) (models.BusRequest, error) {
	req, err := scanRequest(r.db.QueryRow(`
		SELECT `+requestColumns+`
		FROM bus_requests r
		JOIN users u ON u.id = r.requester_id
		WHERE r.id = $1
	`, id))
	if err == sql.ErrNoRows {
		return req, errs.NotFound("request %s not found", id)
	}
	if err != nil {
		return req, err
	}

	passengers, err := r.passengersFor([]string{id})
	if err != nil {
		return req, err
	}
	req.Passengers = passengers[id]
	if req.Passengers == nil {
		req.Passengers = []models.Passenger{}
	}
	return req, nil
}

func (r *requestRepository) ListByRequester(requesterID int) ([]models.BusRequest, error) {
	return r.list(`WHERE r.requester_id = $1`, requesterID)
}

func (r *requestRepository) ListAll() ([]models.BusRequest, error) {
	return r.list(``)
}

func (r *requestRepository) list(where string, args ...interface{}) ([]models.BusRequest, error) {
	rows, err := r.db.Query(`
		SELECT `+requestColumns+`
		FROM bus_requests r
		JOIN users u ON u.id = r.requester_id
		`+where+`
		ORDER BY r.created_at DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []models.BusRequest{}
	ids := []string{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		req.Passengers = []models.Passenger{}
		requests = append(requests, req)
		ids = append(ids, req.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	passengers, err := r.passengersFor(ids)
	if err != nil {
		return nil, err
	}
	for i := range requests {
		if ps, ok := passengers[requests[i].ID]; ok {
			requests[i].Passengers = ps
		}
	}
	return requests, nil
}

func (r *requestRepository) passengersFor(requestIDs []string) (map[string][]models.Passenger, error) {
	result := map[string][]models.Passenger{}
	if len(requestIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(`
		SELECT request_id, user_id, name, email, role
		FROM passenger_assignments
		WHERE request_id = ANY($1)
		ORDER BY created_at ASC
	`, pq.Array(requestIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var reqID string
		var p models.Passenger
		if err := rows.Scan(&reqID, &p.UserID, &p.Name, &p.Email, &p.Role); err != nil {
			return nil, err
		}
		result[reqID] = append(result[reqID], p)
	}
	return result, rows.Err()
}

func (r *requestRepository) ApplyDecision(req models.BusRequest, busVersions map[string]int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	res, err := tx.Exec(`
		UPDATE bus_requests
		SET status = $1, assigned_bus_id = $2, assigned_trip = $3, admin_notes = $4
		WHERE id = $5
	`, req.Status, req.AssignedBusID, req.AssignedTrip, req.AdminNotes, req.ID)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return errs.NotFound("request %s not found", req.ID)
	}

	for busID, version := range busVersions {
		res, err := tx.Exec(`UPDATE buses SET version = version + 1 WHERE id = $1 AND version = $2`, busID, version)
		if err != nil {
			tx.Rollback()
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			tx.Rollback()
			return errs.Conflict("bus %s was modified concurrently", busID)
		}
	}

	if _, err := tx.Exec(`DELETE FROM passenger_assignments WHERE request_id = $1`, req.ID); err != nil {
		tx.Rollback()
		return err
	}

	for _, p := range req.Passengers {
		// A passenger already on the bus through another request is absorbed,
		// keeping the roster duplicate-free; ownership moves to this request.
		_, err := tx.Exec(`
			INSERT INTO passenger_assignments (bus_id, request_id, user_id, name, email, role)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (bus_id, user_id) WHERE bus_id IS NOT NULL
			DO UPDATE SET request_id = EXCLUDED.request_id, name = EXCLUDED.name,
			              email = EXCLUDED.email, role = EXCLUDED.role
		`, req.AssignedBusID, req.ID, p.UserID, p.Name, p.Email, p.Role)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
