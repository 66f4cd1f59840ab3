// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledroitcheck-service/internal/domain/identity"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/events"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type Config struct {
	TTL           time.Duration
	IdleTimeout   time.Duration
	ClearOnUnload bool
	LoginPath     string
}

// Manager keeps identity records in an ephemeral and a durable backend and
// expires idle sessions. The idle deadline of a session lives in the durable
// backend so every instance sharing it agrees on when the session expires.
type Manager struct {
	id        string
	ephemeral Backend
	durable   Backend
	publisher events.Publisher
	idle      *IdleMonitor
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

func NewManager(ephemeral, durable Backend, publisher events.Publisher, cfg Config, logger *zap.Logger) *Manager {
	m := &Manager{
		id:        ulid.Make().String(),
		ephemeral: ephemeral,
		durable:   durable,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	m.idle = NewIdleMonitor(cfg.IdleTimeout, m.expire)
	return m
}

func idleKey(sid string) string {
	return "idle:" + sid
}

// Establish stores a new session for rec and starts its idle window.
func (m *Manager) Establish(ctx context.Context, rec *identity.Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("establish session: %w", xerrors.ErrInvalidInput)
	}
	rec.ApplySelectionRule()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = m.now().UTC()
	}

	sid := ulid.Make().String()
	if err := m.touch(ctx, sid); err != nil {
		return "", err
	}
	if err := m.Write(ctx, sid, rec); err != nil {
		return "", err
	}
	m.idle.Track(sid)

	m.logger.Info("session established",
		zap.String("session_id", sid),
		zap.String("iniciales", rec.Initials),
		zap.Int("empresas", len(rec.Companies)),
		zap.Bool("verificado", rec.Verified),
	)
	return sid, nil
}

// Read returns the record for sid, or nil when it is absent, unparsable or
// past its idle deadline. A session found past its deadline is cleared.
func (m *Manager) Read(ctx context.Context, sid string) (*identity.Record, error) {
	rec, err := m.load(ctx, sid)
	if err != nil || rec == nil || m.cfg.IdleTimeout <= 0 {
		return rec, err
	}

	left, err := m.durable.TTL(ctx, idleKey(sid))
	switch {
	case errors.Is(err, ErrMissing):
		m.expireNow(ctx, sid, rec.Initials)
		return nil, nil
	case err != nil:
		m.logger.Warn("failed to read idle deadline", zap.String("session_id", sid), zap.Error(err))
	case !m.idle.Tracked(sid):
		// Loaded by an instance that did not start the session, or after a restart.
		m.idle.TrackFor(sid, left)
	}
	return rec, nil
}

func (m *Manager) load(ctx context.Context, sid string) (*identity.Record, error) {
	if sid == "" {
		return nil, nil
	}

	data, err := m.ephemeral.Get(ctx, sid)
	fromDurable := false
	if errors.Is(err, ErrMissing) {
		data, err = m.durable.Get(ctx, sid)
		fromDurable = true
	}
	if errors.Is(err, ErrMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w: %v", xerrors.ErrUnavailable, err)
	}

	rec := identity.NormalizeJSON(data)
	if rec == nil {
		m.logger.Warn("discarding unparsable session record", zap.String("session_id", sid))
		return nil, nil
	}

	if fromDurable {
		if err := m.ephemeral.Set(ctx, sid, data, m.cfg.TTL); err != nil {
			m.logger.Warn("failed to cache session locally", zap.Error(err))
		}
	}
	return rec, nil
}

// Write stores rec in both backends and notifies observers.
func (m *Manager) Write(ctx context.Context, sid string, rec *identity.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := m.ephemeral.Set(ctx, sid, data, m.cfg.TTL); err != nil {
		return fmt.Errorf("write ephemeral session: %w", err)
	}
	if err := m.durable.Set(ctx, sid, data, m.cfg.TTL); err != nil {
		return fmt.Errorf("write durable session: %w: %v", xerrors.ErrUnavailable, err)
	}

	m.publish(ctx, EventChanged, sid, ChangedData{SessionID: sid, Initials: rec.Initials, Origin: m.id})
	return nil
}

// Clear removes the session everywhere and notifies observers. When redirect
// is set, observers should navigate to the login entry point.
func (m *Manager) Clear(ctx context.Context, sid, reason string, redirect bool) error {
	m.idle.Stop(sid)

	var initials string
	if rec, _ := m.load(ctx, sid); rec != nil {
		initials = rec.Initials
	}

	_ = m.ephemeral.Del(ctx, sid)
	durableErr := m.durable.Del(ctx, sid)
	if durableErr == nil {
		durableErr = m.durable.Del(ctx, idleKey(sid))
	}
	if durableErr != nil {
		m.logger.Error("failed to clear durable session",
			zap.String("session_id", sid),
			zap.Error(durableErr),
		)
	}

	m.publishCleared(ctx, sid, initials, reason, redirect)

	m.logger.Info("session cleared",
		zap.String("session_id", sid),
		zap.String("reason", reason),
	)
	if durableErr != nil {
		return fmt.Errorf("clear session: %w", durableErr)
	}
	return nil
}

// Activity resets the idle window for a qualifying interaction event. The
// shared deadline moves too, so activity seen by any instance counts.
func (m *Manager) Activity(sid, event string) bool {
	if !m.idle.Activity(sid, event) {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.touch(ctx, sid); err != nil {
		m.logger.Warn("failed to extend idle deadline", zap.String("session_id", sid), zap.Error(err))
	}
	return true
}

// Unload clears the session on tab close only when enabled by configuration.
func (m *Manager) Unload(ctx context.Context, sid string) (bool, error) {
	if !m.cfg.ClearOnUnload {
		return false, nil
	}
	return true, m.Clear(ctx, sid, ReasonUnload, false)
}

// SelectCompany sets the operating company, which must be one of the user's active companies.
func (m *Manager) SelectCompany(ctx context.Context, sid, name string) (*identity.Record, error) {
	rec, err := m.Read(ctx, sid)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, xerrors.ErrNoSession
	}
	if !rec.Select(name) {
		return nil, xerrors.ErrCompanyNotSelected
	}
	if err := m.Write(ctx, sid, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// IdleTimeout returns the configured idle window.
func (m *Manager) IdleTimeout() time.Duration {
	return m.cfg.IdleTimeout
}

// Watch keeps this instance consistent with changes made by others: a changed
// or cleared session is dropped from the ephemeral backend, and a cleared one
// stops its local idle timer.
func (m *Manager) Watch(bus *events.Bus) *events.Subscription {
	return bus.Subscribe("session:", "", m.observe)
}

func (m *Manager) observe(e events.Event) {
	if e.Key == "" {
		return
	}
	switch e.Type {
	case EventChanged:
		var data ChangedData
		if err := e.Decode(&data); err == nil && data.Origin == m.id {
			return
		}
	case EventCleared:
		var data ClearedData
		if err := e.Decode(&data); err == nil && data.Origin == m.id {
			return
		}
		m.idle.Stop(e.Key)
	default:
		return
	}
	_ = m.ephemeral.Del(context.Background(), e.Key)
}

// Shutdown stops every pending idle timer.
func (m *Manager) Shutdown() {
	m.idle.StopAll()
}

func (m *Manager) touch(ctx context.Context, sid string) error {
	if m.cfg.IdleTimeout <= 0 {
		return nil
	}
	if err := m.durable.Set(ctx, idleKey(sid), []byte("1"), m.cfg.IdleTimeout); err != nil {
		return fmt.Errorf("write idle deadline: %w: %v", xerrors.ErrUnavailable, err)
	}
	return nil
}

// expire runs when the local idle timer fires. The shared deadline decides:
// when activity elsewhere pushed it out, the timer is re-armed for the rest.
func (m *Manager) expire(sid string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	left, err := m.durable.TTL(ctx, idleKey(sid))
	switch {
	case err == nil && left > 0:
		m.idle.TrackFor(sid, left)
		return
	case err != nil && !errors.Is(err, ErrMissing):
		m.logger.Warn("failed to read idle deadline, retrying", zap.String("session_id", sid), zap.Error(err))
		m.idle.Track(sid)
		return
	}

	var initials string
	if rec, _ := m.load(ctx, sid); rec != nil {
		initials = rec.Initials
	}
	m.expireNow(ctx, sid, initials)
}

// expireNow clears an idle session. Only the instance that removes the durable
// record announces it, so an expiry is reported once.
func (m *Manager) expireNow(ctx context.Context, sid, initials string) {
	m.idle.Stop(sid)
	_ = m.ephemeral.Del(ctx, sid)
	_ = m.durable.Del(ctx, idleKey(sid))

	taken, err := m.durable.Take(ctx, sid)
	if err != nil {
		m.logger.Error("failed to expire idle session", zap.String("session_id", sid), zap.Error(err))
		return
	}
	if !taken {
		return
	}

	m.publishCleared(ctx, sid, initials, ReasonInactivity, true)
	m.logger.Info("session cleared",
		zap.String("session_id", sid),
		zap.String("reason", ReasonInactivity),
	)
}

func (m *Manager) publishCleared(ctx context.Context, sid, initials, reason string, redirect bool) {
	data := ClearedData{SessionID: sid, Initials: initials, Reason: reason, Redirect: redirect, Origin: m.id}
	if redirect {
		data.LoginPath = m.cfg.LoginPath
	}
	m.publish(ctx, EventCleared, sid, data)
}

func (m *Manager) publish(ctx context.Context, eventType, sid string, data any) {
	if m.publisher == nil {
		return
	}
	e, err := events.New(eventType, sid, data)
	if err != nil {
		m.logger.Warn("failed to build session event", zap.Error(err))
		return
	}
	if err := m.publisher.Publish(ctx, e); err != nil {
		m.logger.Warn("failed to publish session event", zap.String("event", eventType), zap.Error(err))
	}
}
