package repository

import (
	"database/sql"

	"tms/pkg/errs"
	"tms/pkg/models"

	"github.com/lib/pq"
)

type BusRepository interface {
	List() ([]models.Bus, error)
	GetByID(id string) (models.Bus, error)
	Create(bus models.Bus) error
	Update(bus models.Bus) error
	Delete(id string) error

	// ReplaceRoster swaps the full roster from the direct manage-passengers
	// path. The version check makes concurrent reviewer decisions fail loudly
	// instead of silently overbooking.
	ReplaceRoster(busID string, version int, passengers []models.Passenger) error

	UpdateLocation(busID string, lat, lng float64) error
	ListLive() ([]models.BusPosition, error)
}

type busRepository struct {
	db *sql.DB
}

func NewBusRepository(db *sql.DB) BusRepository {
	return &busRepository{db: db}
}

const busColumns = `
	b.id, b.plate, b.capacity, b.route, b.departure,
	b.up_driver, b.down_driver, COALESCE(up_u.name, ''), COALESCE(down_u.name, ''),
	b.stops, b.student_bus, b.staff_bus, b.lat, b.lng, b.version, b.created_at`

const busJoins = `
	LEFT JOIN users up_u ON up_u.id = b.up_driver
	LEFT JOIN users down_u ON down_u.id = b.down_driver`

func scanBus(scanner interface{ Scan(...interface{}) error }) (models.Bus, error) {
	var b models.Bus
	err := scanner.Scan(
		&b.ID, &b.Plate, &b.Capacity, &b.Route, &b.Departure,
		&b.UpDriver, &b.DownDriver, &b.UpDriverName, &b.DownDriverName,
		pq.Array(&b.Stops), &b.StudentBus, &b.StaffBus, &b.Lat, &b.Lng, &b.Version, &b.CreatedAt,
	)
	return b, err
}

func (r *busRepository) List() ([]models.Bus, error) {
	rows, err := r.db.Query(`SELECT ` + busColumns + ` FROM buses b` + busJoins + ` ORDER BY b.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buses := []models.Bus{}
	index := map[string]int{}
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		b.Passengers = []models.Passenger{}
		index[b.ID] = len(buses)
		buses = append(buses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := r.db.Query(`
		SELECT bus_id, user_id, name, email, role, request_id
		FROM passenger_assignments
		WHERE bus_id IS NOT NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer prows.Close()

	for prows.Next() {
		var busID string
		var p models.Passenger
		if err := prows.Scan(&busID, &p.UserID, &p.Name, &p.Email, &p.Role, &p.RequestID); err != nil {
			return nil, err
		}
		if i, ok := index[busID]; ok {
			buses[i].Passengers = append(buses[i].Passengers, p)
		}
	}
	return buses, prows.Err()
}

func (r *busRepository) GetByID(id string) (models.Bus, error) {
	b, err := scanBus(r.db.QueryRow(`SELECT `+busColumns+` FROM buses b`+busJoins+` WHERE b.id = $1`, id))
	if err == sql.ErrNoRows {
		return b, errs.NotFound("bus %s not found", id)
	}
	if err != nil {
		return b, err
	}

	b.Passengers, err = r.roster(id)
	return b, err
}

func (r *busRepository) roster(busID string) ([]models.Passenger, error) {
	rows, err := r.db.Query(`
		SELECT user_id, name, email, role, request_id
		FROM passenger_assignments
		WHERE bus_id = $1
		ORDER BY created_at ASC
	`, busID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	passengers := []models.Passenger{}
	for rows.Next() {
		var p models.Passenger
		if err := rows.Scan(&p.UserID, &p.Name, &p.Email, &p.Role, &p.RequestID); err != nil {
			return nil, err
		}
		passengers = append(passengers, p)
	}
	return passengers, rows.Err()
}

func (r *busRepository) Create(bus models.Bus) error {
	_, err := r.db.Exec(`
		INSERT INTO buses (id, plate, capacity, route, departure, up_driver, down_driver, stops, student_bus, staff_bus)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, bus.ID, bus.Plate, bus.Capacity, bus.Route, bus.Departure,
		bus.UpDriver, bus.DownDriver, pq.Array(bus.Stops), bus.StudentBus, bus.StaffBus)
	return err
}

// Update writes bus fields; the caller supplies the version it read and the
// write fails with ConflictError if another writer got there first.
func (r *busRepository) Update(bus models.Bus) error {
	res, err := r.db.Exec(`
		UPDATE buses
		SET plate = $1, capacity = $2, route = $3, departure = $4,
		    up_driver = $5, down_driver = $6, stops = $7,
		    student_bus = $8, staff_bus = $9, version = version + 1
		WHERE id = $10 AND version = $11
	`, bus.Plate, bus.Capacity, bus.Route, bus.Departure,
		bus.UpDriver, bus.DownDriver, pq.Array(bus.Stops),
		bus.StudentBus, bus.StaffBus, bus.ID, bus.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.Conflict("bus %s was modified concurrently", bus.ID)
	}
	return nil
}

func (r *busRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM buses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("bus %s not found", id)
	}
	return nil
}

func (r *busRepository) ReplaceRoster(busID string, version int, passengers []models.Passenger) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	res, err := tx.Exec(`UPDATE buses SET version = version + 1 WHERE id = $1 AND version = $2`, busID, version)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return errs.Conflict("bus %s was modified concurrently", busID)
	}

	if _, err := tx.Exec(`DELETE FROM passenger_assignments WHERE bus_id = $1`, busID); err != nil {
		tx.Rollback()
		return err
	}

	for _, p := range passengers {
		_, err := tx.Exec(`
			INSERT INTO passenger_assignments (bus_id, user_id, name, email, role)
			VALUES ($1, $2, $3, $4, $5)
		`, busID, p.UserID, p.Name, p.Email, p.Role)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (r *busRepository) UpdateLocation(busID string, lat, lng float64) error {
	res, err := r.db.Exec(`
		UPDATE buses SET lat = $1, lng = $2, location_at = NOW() WHERE id = $3
	`, lat, lng, busID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("bus %s not found", busID)
	}
	return nil
}

func (r *busRepository) ListLive() ([]models.BusPosition, error) {
	rows, err := r.db.Query(`
		SELECT id, plate, route, lat, lng, EXTRACT(EPOCH FROM location_at)::bigint
		FROM buses
		WHERE lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []models.BusPosition{}
	for rows.Next() {
		var p models.BusPosition
		var at sql.NullInt64
		if err := rows.Scan(&p.BusID, &p.Plate, &p.Route, &p.Lat, &p.Lng, &at); err != nil {
			return nil, err
		}
		if at.Valid {
			p.UpdatedAt = at.Int64
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
