package repository

import (
	"database/sql"

	"tms/pkg/errs"
	"tms/pkg/models"

	"github.com/lib/pq"
)

type RouteRepository interface {
	List() ([]models.Route, error)
	GetByID(id string) (models.Route, error)
	Create(route models.Route) error
	Update(route models.Route) error
	Delete(id string) error
}

type routeRepository struct {
	db *sql.DB
}

func NewRouteRepository(db *sql.DB) RouteRepository {
	return &routeRepository{db: db}
}

func (r *routeRepository) List() ([]models.Route, error) {
	rows, err := r.db.Query(`SELECT id, name, stops FROM routes ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	routes := []models.Route{}
	for rows.Next() {
		var rt models.Route
		if err := rows.Scan(&rt.ID, &rt.Name, pq.Array(&rt.Stops)); err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func (r *routeRepository) GetByID(id string) (models.Route, error) {
	var rt models.Route
	err := r.db.QueryRow(`SELECT id, name, stops FROM routes WHERE id = $1`, id).
		Scan(&rt.ID, &rt.Name, pq.Array(&rt.Stops))
	if err == sql.ErrNoRows {
		return rt, errs.NotFound("route %s not found", id)
	}
	return rt, err
}

func (r *routeRepository) Create(route models.Route) error {
	_, err := r.db.Exec(`
		INSERT INTO routes (id, name, stops) VALUES ($1, $2, $3)
	`, route.ID, route.Name, pq.Array(route.Stops))
	return err
}

func (r *routeRepository) Update(route models.Route) error {
	res, err := r.db.Exec(`
		UPDATE routes SET name = $1, stops = $2 WHERE id = $3
	`, route.Name, pq.Array(route.Stops), route.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("route %s not found", route.ID)
	}
	return nil
}

func (r *routeRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("route %s not found", id)
	}
	return nil
}
