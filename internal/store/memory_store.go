package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shuttle_tracker/internal/models"
)

// MemoryStore is an in-process Store used when no database is configured
// and by tests. Records are copied in and out so callers never share state.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	nextID   uint
	users    map[uint]models.User
	buses    map[uint]models.Bus
	routes   map[uint]models.Route
	stops    map[uint]models.Stop
	requests map[uint]models.WaitRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uint]models.User),
		buses:    make(map[uint]models.Bus),
		routes:   make(map[uint]models.Route),
		stops:    make(map[uint]models.Stop),
		requests: make(map[uint]models.WaitRequest),
	}
}

// memTx serializes units of work; nested WithTx calls reuse the open one.
type memTx struct{ *MemoryStore }

func (t memTx) WithTx(ctx context.Context, fn func(Store) error) error { return fn(t) }

// WithTx runs fn while holding the transaction lock. Writes are not rolled
// back on error; callers validate before writing.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(memTx{m})
}

// id must be called with mu held.
func (m *MemoryStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	u.ID = m.id()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *MemoryStore) CreateBus(ctx context.Context, b *models.Bus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.buses {
		if existing.BusNumber == b.BusNumber {
			return ErrDuplicate
		}
	}
	b.ID = m.id()
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	stored := *b
	stored.Driver = nil
	stored.Routes = nil
	m.buses[b.ID] = stored
	return nil
}

// withDriver must be called with mu held.
func (m *MemoryStore) withDriver(b models.Bus) *models.Bus {
	if b.DriverID != nil {
		if u, ok := m.users[*b.DriverID]; ok {
			b.Driver = &u
		}
	}
	return &b
}

func (m *MemoryStore) GetBus(ctx context.Context, id uint) (*models.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.withDriver(b), nil
}

func (m *MemoryStore) FindBusByDriver(ctx context.Context, driverID uint) (*models.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *models.Bus
	for _, b := range m.buses {
		if b.OwnedBy(driverID) && (found == nil || b.ID < found.ID) {
			found = m.withDriver(b)
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *MemoryStore) listBuses(activeOnly bool) []models.Bus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Bus, 0, len(m.buses))
	for _, b := range m.buses {
		if activeOnly && !b.IsActive {
			continue
		}
		out = append(out, *m.withDriver(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) ListBuses(ctx context.Context) ([]models.Bus, error) {
	return m.listBuses(false), nil
}

func (m *MemoryStore) ListActiveBuses(ctx context.Context) ([]models.Bus, error) {
	return m.listBuses(true), nil
}

func (m *MemoryStore) UpdateBusPosition(ctx context.Context, busID uint, lat, lng float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buses[busID]
	if !ok {
		return ErrNotFound
	}
	b.CurrentLat = &lat
	b.CurrentLng = &lng
	b.LastUpdated = &at
	m.buses[busID] = b
	return nil
}

func (m *MemoryStore) AssignDriver(ctx context.Context, busID uint, driverID *uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buses[busID]
	if !ok {
		return ErrNotFound
	}
	b.DriverID = driverID
	b.UpdatedAt = time.Now().UTC()
	m.buses[busID] = b
	return nil
}

func (m *MemoryStore) CreateRoute(ctx context.Context, r *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	for i := range r.Stops {
		r.Stops[i].ID = m.id()
		r.Stops[i].RouteID = r.ID
		r.Stops[i].CreatedAt = r.CreatedAt
		r.Stops[i].UpdatedAt = r.CreatedAt
		m.stops[r.Stops[i].ID] = r.Stops[i]
	}
	stored := *r
	stored.Stops = nil
	m.routes[r.ID] = stored
	return nil
}

// stopsFor must be called with mu held.
func (m *MemoryStore) stopsFor(routeID uint) []models.Stop {
	out := make([]models.Stop, 0)
	for _, st := range m.stops {
		if st.RouteID == routeID {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StopOrder != out[j].StopOrder {
			return out[i].StopOrder < out[j].StopOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemoryStore) ListRoutes(ctx context.Context) ([]models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Route, 0, len(m.routes))
	for _, r := range m.routes {
		r.Stops = m.stopsFor(r.ID)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListRoutesByBus(ctx context.Context, busID uint) ([]models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Route, 0)
	for _, r := range m.routes {
		if r.BusID == busID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetStop(ctx context.Context, id uint) (*models.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (m *MemoryStore) ListStopsByRoute(ctx context.Context, routeID uint) ([]models.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopsFor(routeID), nil
}

func (m *MemoryStore) CreateWaitRequest(ctx context.Context, w *models.WaitRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = m.id()
	w.CreatedAt = time.Now().UTC()
	w.UpdatedAt = w.CreatedAt
	if w.Timestamp.IsZero() {
		w.Timestamp = w.CreatedAt
	}
	stored := *w
	stored.Bus = models.Bus{}
	stored.User = models.User{}
	stored.Stop = models.Stop{}
	m.requests[w.ID] = stored
	return nil
}

func (m *MemoryStore) GetWaitRequest(ctx context.Context, id uint) (*models.WaitRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b, ok := m.buses[w.BusID]; ok {
		w.Bus = b
	}
	w.User = m.users[w.UserID]
	return &w, nil
}

func (m *MemoryStore) FindPendingWaitRequest(ctx context.Context, busID, userID uint) (*models.WaitRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.requests {
		if w.BusID == busID && w.UserID == userID && w.Pending() {
			w := w
			return &w, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListPendingWaitRequests(ctx context.Context, busID uint) ([]models.WaitRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.WaitRequest, 0)
	for _, w := range m.requests {
		if w.BusID != busID || !w.Pending() {
			continue
		}
		w.User = m.users[w.UserID]
		w.Stop = m.stops[w.StopID]
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ResolveWaitRequest(ctx context.Context, id uint, status models.WaitStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if !w.Pending() {
		return false, nil
	}
	w.Acknowledged = status == models.WaitAcknowledged
	w.Declined = status == models.WaitDeclined
	w.UpdatedAt = time.Now().UTC()
	m.requests[id] = w
	return true, nil
}
