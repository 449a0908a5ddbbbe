package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"shuttle_tracker/internal/models"
)

// GormStore implements Store on top of a GORM handle.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, translate(err)
}

func (s *GormStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) CreateBus(ctx context.Context, b *models.Bus) error {
	return translate(s.db.WithContext(ctx).Create(b).Error)
}

func (s *GormStore) GetBus(ctx context.Context, id uint) (*models.Bus, error) {
	var b models.Bus
	if err := s.db.WithContext(ctx).Preload("Driver").First(&b, id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *GormStore) FindBusByDriver(ctx context.Context, driverID uint) (*models.Bus, error) {
	var b models.Bus
	err := s.db.WithContext(ctx).
		Preload("Driver").
		Where("driver_id = ?", driverID).
		Order("id ASC").
		First(&b).Error
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *GormStore) ListBuses(ctx context.Context) ([]models.Bus, error) {
	var buses []models.Bus
	err := s.db.WithContext(ctx).Preload("Driver").Order("id ASC").Find(&buses).Error
	return buses, translate(err)
}

func (s *GormStore) ListActiveBuses(ctx context.Context) ([]models.Bus, error) {
	var buses []models.Bus
	err := s.db.WithContext(ctx).
		Preload("Driver").
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&buses).Error
	return buses, translate(err)
}

func (s *GormStore) UpdateBusPosition(ctx context.Context, busID uint, lat, lng float64, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Bus{}).
		Where("id = ?", busID).
		UpdateColumns(map[string]interface{}{
			"current_lat":  lat,
			"current_lng":  lng,
			"last_updated": at,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AssignDriver(ctx context.Context, busID uint, driverID *uint) error {
	res := s.db.WithContext(ctx).Model(&models.Bus{}).Where("id = ?", busID).Update("driver_id", driverID)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateRoute(ctx context.Context, r *models.Route) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	err := s.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("stop_order ASC, id ASC") }).
		Order("id ASC").
		Find(&routes).Error
	return routes, translate(err)
}

func (s *GormStore) ListRoutesByBus(ctx context.Context, busID uint) ([]models.Route, error) {
	var routes []models.Route
	err := s.db.WithContext(ctx).Where("bus_id = ?", busID).Order("id ASC").Find(&routes).Error
	return routes, translate(err)
}

func (s *GormStore) GetStop(ctx context.Context, id uint) (*models.Stop, error) {
	var st models.Stop
	if err := s.db.WithContext(ctx).First(&st, id).Error; err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *GormStore) ListStopsByRoute(ctx context.Context, routeID uint) ([]models.Stop, error) {
	var stops []models.Stop
	err := s.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("stop_order ASC, id ASC").
		Find(&stops).Error
	return stops, translate(err)
}

func (s *GormStore) CreateWaitRequest(ctx context.Context, w *models.WaitRequest) error {
	return translate(s.db.WithContext(ctx).Omit("Bus", "User", "Stop").Create(w).Error)
}

func (s *GormStore) GetWaitRequest(ctx context.Context, id uint) (*models.WaitRequest, error) {
	var w models.WaitRequest
	if err := s.db.WithContext(ctx).Preload("Bus").Preload("User").First(&w, id).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *GormStore) FindPendingWaitRequest(ctx context.Context, busID, userID uint) (*models.WaitRequest, error) {
	var w models.WaitRequest
	err := s.db.WithContext(ctx).
		Where("bus_id = ? AND user_id = ? AND acknowledged = ? AND declined = ?", busID, userID, false, false).
		First(&w).Error
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *GormStore) ListPendingWaitRequests(ctx context.Context, busID uint) ([]models.WaitRequest, error) {
	var reqs []models.WaitRequest
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Stop").
		Where("bus_id = ? AND acknowledged = ? AND declined = ?", busID, false, false).
		Order("timestamp DESC, id DESC").
		Find(&reqs).Error
	return reqs, translate(err)
}

func (s *GormStore) ResolveWaitRequest(ctx context.Context, id uint, status models.WaitStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.WaitRequest{}).
		Where("id = ? AND acknowledged = ? AND declined = ?", id, false, false).
		Updates(map[string]interface{}{
			"acknowledged": status == models.WaitAcknowledged,
			"declined":     status == models.WaitDeclined,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.Constraint)
	}
	return err
}
