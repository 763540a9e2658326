// Package service combines the repositories into the operations the HTTP layer and admin CLI use.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sparkpark/backend/services/parking-service/internal/billing"
	"sparkpark/backend/services/parking-service/internal/geo"
	"sparkpark/backend/services/parking-service/internal/models"
	"sparkpark/backend/services/parking-service/internal/repository"
)

// ZoneCache stores the zone catalogue between requests.
type ZoneCache interface {
	Get(ctx context.Context) ([]models.Zone, bool, error)
	Save(ctx context.Context, zones []models.Zone) error
	Invalidate(ctx context.Context) error
}

// LiveSession is an open session with its running duration and cost.
type LiveSession struct {
	models.Session
	ElapsedSeconds int64          `json:"elapsed_seconds"`
	Elapsed        string         `json:"elapsed"`
	RatePerMinute  billing.Amount `json:"rate_per_minute"`
	CurrentCost    billing.Amount `json:"current_cost"`
	Currency       string         `json:"currency"`
}

// ZoneQuery narrows and orders the zone catalogue.
type ZoneQuery struct {
	Search string
	Near   *geo.Point
}

// SeedResult counts the outcome of SeedZones.
type SeedResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ParkingService ties repositories and cache.
type ParkingService struct {
	zones    *repository.ZoneRepository
	sessions *repository.SessionRepository
	receipts *repository.ReceiptRepository
	cache    ZoneCache
	now      func() time.Time
	logger   *zap.Logger
}

// NewParkingService builds service. cache may be nil.
func NewParkingService(
	zones *repository.ZoneRepository,
	sessions *repository.SessionRepository,
	receipts *repository.ReceiptRepository,
	cache ZoneCache,
	logger *zap.Logger,
) *ParkingService {
	return &ParkingService{
		zones:    zones,
		sessions: sessions,
		receipts: receipts,
		cache:    cache,
		now:      time.Now,
		logger:   logger,
	}
}

// ListZones returns the catalogue filtered by q.Search and, when q.Near is set, nearest first.
func (s *ParkingService) ListZones(ctx context.Context, q ZoneQuery) ([]models.ZoneWithDistance, error) {
	zones, err := s.catalogue(ctx)
	if err != nil {
		return nil, err
	}
	return geo.WithDistances(repository.FilterZones(zones, q.Search), q.Near), nil
}

func (s *ParkingService) catalogue(ctx context.Context) ([]models.Zone, error) {
	if s.cache != nil {
		zones, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("zone cache read failed", zap.Error(err))
		} else if ok {
			return zones, nil
		}
	}

	zones, err := s.zones.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Save(ctx, zones); err != nil {
			s.logger.Warn("zone cache write failed", zap.Error(err))
		}
	}
	return zones, nil
}

// GetZone returns one zone.
func (s *ParkingService) GetZone(ctx context.Context, id string) (*models.Zone, error) {
	return s.zones.Get(ctx, id)
}

// SeedZones upserts zones by zone code and drops the cached catalogue.
func (s *ParkingService) SeedZones(ctx context.Context, zones []models.Zone) (SeedResult, error) {
	var result SeedResult
	for _, z := range zones {
		_, created, err := s.zones.Upsert(ctx, z)
		if err != nil {
			return result, err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("zone cache invalidate failed", zap.Error(err))
		}
	}
	s.logger.Info("zones seeded", zap.Int("created", result.Created), zap.Int("updated", result.Updated))
	return result, nil
}

// StartSession opens a session for the caller, creating an anonymous principal if needed.
func (s *ParkingService) StartSession(ctx context.Context, zoneID string) (*LiveSession, error) {
	session, err := s.sessions.Start(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	live := s.live(*session, s.now())
	return &live, nil
}

// ActiveSessions returns the caller's open sessions priced as of now.
func (s *ParkingService) ActiveSessions(ctx context.Context) ([]LiveSession, error) {
	sessions, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]LiveSession, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, s.live(session, now))
	}
	return out, nil
}

// StopSession closes the caller's session and returns its receipt.
func (s *ParkingService) StopSession(ctx context.Context, sessionID string) (*models.Receipt, error) {
	return s.sessions.Stop(ctx, sessionID)
}

// Receipts returns the caller's receipts, newest first.
func (s *ParkingService) Receipts(ctx context.Context) ([]models.Receipt, error) {
	return s.receipts.ListForPrincipal(ctx)
}

func (s *ParkingService) live(session models.Session, now time.Time) LiveSession {
	rate, currency := s.sessions.Rate()
	elapsed, _ := billing.ElapsedSeconds(session.StartedAt, now)
	return LiveSession{
		Session:        session,
		ElapsedSeconds: elapsed,
		Elapsed:        billing.FormatDuration(elapsed),
		RatePerMinute:  rate,
		CurrentCost:    billing.Cost(elapsed, rate),
		Currency:       currency,
	}
}
