package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sparkpark/backend/services/parking-service/internal/billing"
	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/models"
)

// Observer receives session lifecycle events worth counting.
type Observer interface {
	SessionStarted(session *models.Session)
	ReceiptCreated(receipt *models.Receipt)
	DurationClamped(sessionID string)
	ZoneLookupFailed(sessionID string)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(*models.Session) {}
func (nopObserver) ReceiptCreated(*models.Receipt) {}
func (nopObserver) DurationClamped(string)         {}
func (nopObserver) ZoneLookupFailed(string)        {}

// StopGuard keeps two stops of the same session from running at once.
type StopGuard interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

// SessionRepository creates, lists and closes the current principal's parking sessions.
type SessionRepository struct {
	gw       gateway.Gateway
	zones    *ZoneRepository
	rate     billing.Amount
	currency string
	now      func() time.Time
	observer Observer
	guard    StopGuard
	logger   *zap.Logger
}

// Option configures a SessionRepository.
type Option func(*SessionRepository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *SessionRepository) { r.now = now }
}

// WithRate sets the per-minute rate and currency applied to new receipts.
func WithRate(rate billing.Amount, currency string) Option {
	return func(r *SessionRepository) {
		if rate > 0 {
			r.rate = rate
		}
		if currency != "" {
			r.currency = currency
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(r *SessionRepository) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithStopGuard serialises concurrent stops of one session.
func WithStopGuard(g StopGuard) Option {
	return func(r *SessionRepository) { r.guard = g }
}

// NewSessionRepository returns repository.
func NewSessionRepository(gw gateway.Gateway, zones *ZoneRepository, logger *zap.Logger, opts ...Option) *SessionRepository {
	r := &SessionRepository{
		gw:       gw,
		zones:    zones,
		rate:     billing.DefaultRatePerMinute,
		currency: billing.DefaultCurrency,
		now:      time.Now,
		observer: nopObserver{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rate returns the per-minute rate and currency applied to new receipts.
func (r *SessionRepository) Rate() (billing.Amount, string) {
	return r.rate, r.currency
}

// EnsurePrincipal returns the caller's principal, creating an anonymous one when nobody is signed in.
func (r *SessionRepository) EnsurePrincipal(ctx context.Context) (string, error) {
	if id, ok := r.gw.CurrentPrincipal(ctx); ok {
		return id, nil
	}
	id, err := r.gw.CreateAnonymousPrincipal(ctx)
	if err != nil {
		if apperrors.IsAuth(err) {
			return "", err
		}
		return "", apperrors.Wrap(apperrors.CodeAuth, "could not create anonymous principal", err)
	}
	r.logger.Info("anonymous principal created", zap.String("principal_id", id))
	return id, nil
}

// Start opens a session at zoneID for the caller. Other open sessions are left alone.
func (r *SessionRepository) Start(ctx context.Context, zoneID string) (*models.Session, error) {
	principalID, err := r.EnsurePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	zone, err := r.zones.Get(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	row, err := r.gw.Insert(ctx, gateway.TableSessions, gateway.Record{
		"principal_id": principalID,
		"zone_id":      zone.ID,
		"status":       string(models.SessionStatusOpen),
		"started_at":   r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	session := sessionFromRecord(row)
	session.Zone = zone
	r.observer.SessionStarted(&session)
	r.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("principal_id", principalID),
		zap.String("zone_code", zone.ZoneCode),
	)
	return &session, nil
}

// ListActive returns the caller's open sessions, newest first. Sessions whose zone cannot be
// loaded are returned without it.
func (r *SessionRepository) ListActive(ctx context.Context) ([]models.Session, error) {
	principalID, ok := r.gw.CurrentPrincipal(ctx)
	if !ok {
		return []models.Session{}, nil
	}

	rows, err := r.gw.Query(ctx, gateway.TableSessions, gateway.Query{
		Filters: []gateway.Filter{
			gateway.Eq("principal_id", principalID),
			gateway.Eq("status", string(models.SessionStatusOpen)),
		},
		Order: []gateway.Order{gateway.Desc("started_at")},
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(rows))
	for _, row := range rows {
		session := sessionFromRecord(row)
		zone, err := r.zones.Get(ctx, session.ZoneID)
		if err != nil {
			r.observer.ZoneLookupFailed(session.ID)
			r.logger.Warn("zone lookup failed",
				zap.String("session_id", session.ID),
				zap.String("zone_id", session.ZoneID),
				zap.Error(err),
			)
		} else {
			session.Zone = zone
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// ActiveSession returns the caller's newest open session, or nil.
func (r *SessionRepository) ActiveSession(ctx context.Context) (*models.Session, error) {
	sessions, err := r.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// Stop closes the caller's session and returns its receipt. Stopping a session that already has a
// receipt returns that receipt instead of billing twice.
func (r *SessionRepository) Stop(ctx context.Context, sessionID string) (*models.Receipt, error) {
	principalID, ok := r.gw.CurrentPrincipal(ctx)
	if !ok {
		return nil, apperrors.Auth("sign-in required to stop a session")
	}

	row, err := r.gw.GetByID(ctx, gateway.TableSessions, sessionID, gateway.Eq("principal_id", principalID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperrors.NotFound("session")
	}
	session := sessionFromRecord(row)

	// Only the owner may take the lock, so another principal cannot block this stop.
	if r.guard != nil {
		release, err := r.guard.Acquire(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	existing, err := findBySession(ctx, r.gw, principalID, session.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if session.Open() {
			// A previous stop stored the receipt but failed to close the session.
			if err := r.close(ctx, r.gw, principalID, session.ID, existing.EndedAt); err != nil {
				return nil, err
			}
			r.logger.Info("session closed on retry", zap.String("session_id", session.ID))
		}
		return existing, nil
	}
	if !session.Open() {
		return nil, apperrors.Conflict("session is closed but has no receipt")
	}

	endedAt := r.now().UTC()
	duration, clamped := billing.ElapsedSeconds(session.StartedAt, endedAt)
	if clamped {
		r.observer.DurationClamped(session.ID)
		r.logger.Warn("negative session duration clamped to zero",
			zap.String("session_id", session.ID),
			zap.Time("started_at", session.StartedAt),
			zap.Time("ended_at", endedAt),
		)
	}

	zoneName, zoneCode := models.UnknownZoneName, ""
	zone, err := r.zones.Get(ctx, session.ZoneID)
	switch {
	case err == nil:
		zoneName, zoneCode = zone.Name, zone.ZoneCode
	case apperrors.IsNotFound(err):
		r.observer.ZoneLookupFailed(session.ID)
	default:
		return nil, err
	}

	receipt := models.Receipt{
		PrincipalID:     principalID,
		SessionID:       session.ID,
		ZoneID:          session.ZoneID,
		ZoneName:        zoneName,
		ZoneCode:        zoneCode,
		StartedAt:       session.StartedAt,
		EndedAt:         endedAt,
		DurationSeconds: duration,
		RatePerMinute:   r.rate,
		TotalCost:       billing.Cost(duration, r.rate),
		Currency:        r.currency,
	}

	var created *models.Receipt
	err = gateway.RunAtomic(ctx, r.gw, func(tx gateway.Gateway) error {
		stored, err := insertReceipt(ctx, tx, receipt)
		if err != nil {
			return err
		}
		created = stored
		return r.close(ctx, tx, principalID, session.ID, endedAt)
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			// Another stop of the same session won the insert.
			if winner, ferr := findBySession(ctx, r.gw, principalID, session.ID); ferr == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}

	r.observer.ReceiptCreated(created)
	r.logger.Info("session stopped",
		zap.String("session_id", session.ID),
		zap.String("receipt_id", created.ID),
		zap.Int64("duration_seconds", created.DurationSeconds),
		zap.Stringer("total_cost", created.TotalCost),
	)
	return created, nil
}

func (r *SessionRepository) close(ctx context.Context, gw gateway.Gateway, principalID, sessionID string, at time.Time) error {
	_, err := gw.Update(ctx, gateway.TableSessions, sessionID, gateway.Record{
		"status":    string(models.SessionStatusClosed),
		"closed_at": at,
	}, gateway.Eq("principal_id", principalID))
	return err
}

func sessionFromRecord(row gateway.Record) models.Session {
	return models.Session{
		ID:          row.String("id"),
		PrincipalID: row.String("principal_id"),
		ZoneID:      row.String("zone_id"),
		Status:      models.SessionStatus(row.String("status")),
		StartedAt:   row.Time("started_at"),
		ClosedAt:    row.TimePtr("closed_at"),
	}
}
