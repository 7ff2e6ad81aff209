package service

import (
	"context"
	"time"

	"aiseg-dashboard/internal/cache"
	"aiseg-dashboard/internal/logger"
	"aiseg-dashboard/internal/models"
	"aiseg-dashboard/internal/nickname"
	"aiseg-dashboard/internal/repository"

	"golang.org/x/sync/singleflight"
)

// DashboardService serves every read from the per-category snapshot cache,
// refreshing lazily on TTL expiry. Concurrent refreshes of one expired
// category collapse into a single upstream fetch; a failed refresh serves
// the previous payload when one exists (stale beats empty for a wall
// dashboard).
type DashboardService struct {
	app      Appliance
	store    *cache.Store
	nicks    *nickname.Store
	events   repository.EventRepo
	log      *logger.Logger
	ttl      TTLConfig
	defaults map[string]string // device key -> default name

	sf singleflight.Group
}

func NewDashboardService(app Appliance, store *cache.Store, nicks *nickname.Store,
	events repository.EventRepo, ttl TTLConfig, defaults map[string]string, log *logger.Logger) *DashboardService {
	return &DashboardService{
		app:      app,
		store:    store,
		nicks:    nicks,
		events:   events,
		log:      log,
		ttl:      ttl,
		defaults: defaults,
	}
}

// cachedOrRefresh is the shared lazy-TTL read path.
func (s *DashboardService) cachedOrRefresh(ctx context.Context, cat cache.Category, ttl time.Duration,
	fetch func(context.Context) (any, error)) (any, error) {

	if snap, ok := s.store.Fresh(cat, ttl); ok {
		return snap.Payload, nil
	}

	v, err, _ := s.sf.Do(string(cat), func() (any, error) {
		// A queued duplicate may find the cache already refreshed.
		if snap, ok := s.store.Fresh(cat, ttl); ok {
			return snap.Payload, nil
		}
		payload, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.store.Put(cat, payload)
		return payload, nil
	})
	if err != nil {
		s.recordRefreshError(cat, err)
		if snap, ok := s.store.Get(cat); ok {
			return snap.Payload, nil
		}
		return nil, err
	}
	return v, nil
}

func (s *DashboardService) recordRefreshError(cat cache.Category, err error) {
	s.log.Errorw("upstream refresh failed", "category", cat, "err", err)
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if aerr := s.events.Append(ctx, models.Event{
		Type:        models.EventRefreshError,
		Description: "refresh failed for " + string(cat),
		Metadata:    map[string]any{"error": err.Error()},
	}); aerr != nil {
		s.log.Infow("event append failed", "err", aerr)
	}
}

func (s *DashboardService) Realtime(ctx context.Context) (models.Realtime, error) {
	v, err := s.cachedOrRefresh(ctx, cache.CategoryRealtime, s.ttl.Realtime, func(ctx context.Context) (any, error) {
		return s.app.Realtime(ctx)
	})
	if err != nil {
		return models.Realtime{}, err
	}
	return v.(models.Realtime), nil
}

func (s *DashboardService) Totals(ctx context.Context) (models.TotalsReport, error) {
	v, err := s.cachedOrRefresh(ctx, cache.CategoryTotals, s.ttl.Totals, func(ctx context.Context) (any, error) {
		return s.app.Totals(ctx)
	})
	if err != nil {
		return models.TotalsReport{}, err
	}
	return v.(models.TotalsReport), nil
}

func (s *DashboardService) Devices(ctx context.Context) ([]models.DeviceStatus, error) {
	v, err := s.cachedOrRefresh(ctx, cache.CategoryDevices, s.ttl.Devices, s.fetchDevices)
	if err != nil {
		return nil, err
	}
	return v.([]models.DeviceStatus), nil
}

func (s *DashboardService) Circuits(ctx context.Context) ([]models.Circuit, error) {
	v, err := s.cachedOrRefresh(ctx, cache.CategoryCircuits, s.ttl.Circuits, s.fetchCircuits)
	if err != nil {
		return nil, err
	}
	return v.([]models.Circuit), nil
}

// Forced refreshes bypass the TTL check; the push pollers and the
// post-control settle refresh use these so subscribers always see data
// fetched on their tick, never a cache hit racing the TTL boundary.

func (s *DashboardService) RefreshRealtime(ctx context.Context) (models.Realtime, error) {
	rt, err := s.app.Realtime(ctx)
	if err != nil {
		s.recordRefreshError(cache.CategoryRealtime, err)
		return models.Realtime{}, err
	}
	s.store.Put(cache.CategoryRealtime, rt)
	return rt, nil
}

func (s *DashboardService) RefreshTotals(ctx context.Context) (models.TotalsReport, error) {
	tr, err := s.app.Totals(ctx)
	if err != nil {
		s.recordRefreshError(cache.CategoryTotals, err)
		return models.TotalsReport{}, err
	}
	s.store.Put(cache.CategoryTotals, tr)
	return tr, nil
}

func (s *DashboardService) RefreshDevices(ctx context.Context) ([]models.DeviceStatus, error) {
	v, err := s.fetchDevices(ctx)
	if err != nil {
		s.recordRefreshError(cache.CategoryDevices, err)
		return nil, err
	}
	sts := v.([]models.DeviceStatus)
	s.store.Put(cache.CategoryDevices, sts)
	return sts, nil
}

func (s *DashboardService) RefreshCircuits(ctx context.Context) ([]models.Circuit, error) {
	v, err := s.fetchCircuits(ctx)
	if err != nil {
		s.recordRefreshError(cache.CategoryCircuits, err)
		return nil, err
	}
	circuits := v.([]models.Circuit)
	s.store.Put(cache.CategoryCircuits, circuits)
	return circuits, nil
}

// fetchDevices pulls a fresh aggregation and applies the nickname overlay
// before the payload ever reaches the cache.
func (s *DashboardService) fetchDevices(ctx context.Context) (any, error) {
	sts, err := s.app.Devices(ctx)
	if err != nil {
		return nil, err
	}
	s.annotate(sts)
	return sts, nil
}

// fetchCircuits resolves the circuit identity list (scraped once, kept for
// the process lifetime) and merges per-circuit kWh onto it.
func (s *DashboardService) fetchCircuits(ctx context.Context) (any, error) {
	list, err := s.circuitIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return s.app.CircuitKWh(ctx, list), nil
}

func (s *DashboardService) circuitIdentity(ctx context.Context) ([]models.Circuit, error) {
	if snap, ok := s.store.Get(cache.CategoryCircuitList); ok {
		return snap.Payload.([]models.Circuit), nil
	}
	list, err := s.app.CircuitList(ctx)
	if err != nil {
		return nil, err
	}
	// An empty scrape is not pinned, so a flaky first page gets retried.
	if len(list) > 0 {
		s.store.Put(cache.CategoryCircuitList, list)
	}
	return list, nil
}

// annotate overlays nicknames onto a device snapshot in place.
func (s *DashboardService) annotate(sts []models.DeviceStatus) {
	for i := range sts {
		key := sts[i].Key()
		if def, ok := s.defaults[key]; ok {
			sts[i].Name = def
		}
		if label, ok := s.nicks.Get(key); ok {
			sts[i].Name = label
		}
	}
}

func (s *DashboardService) Nicknames() map[string]string {
	return s.nicks.All()
}

// SetNickname persists the label and eagerly re-annotates the cached device
// snapshot, so a rename is visible on the very next read without waiting
// for the next refresh cycle.
func (s *DashboardService) SetNickname(key, label string) error {
	if err := s.nicks.Set(key, label); err != nil {
		return err
	}
	if snap, ok := s.store.Get(cache.CategoryDevices); ok {
		sts := append([]models.DeviceStatus(nil), snap.Payload.([]models.DeviceStatus)...)
		s.annotate(sts)
		s.store.Replace(cache.CategoryDevices, sts)
	}
	return nil
}
