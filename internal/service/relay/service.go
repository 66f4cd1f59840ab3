// internal/service/relay/service.go
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"ledroitcheck-service/internal/domain/handoff"
	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/role"
	"ledroitcheck-service/internal/domain/system"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/metrics"
	"ledroitcheck-service/internal/pkg/session"

	"go.uber.org/zap"
)

type Sessions interface {
	Read(ctx context.Context, sid string) (*identity.Record, error)
	Clear(ctx context.Context, sid, reason string, redirect bool) error
}

type LastLogins interface {
	Lookup(ctx context.Context, initials string) (*handoff.LastLogin, error)
}

type Systems interface {
	Get(ctx context.Context, id string) (*system.SecondarySystem, error)
}

var pagePattern = regexp.MustCompile(`(?i)ingreso-derivado\.html$`)

// Service sends the current user to a partner system with their most recent
// successful login payload.
type Service struct {
	sessions   Sessions
	lastLogins LastLogins
	systems    Systems
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(sessions Sessions, lastLogins LastLogins, systems Systems, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		sessions:   sessions,
		lastLogins: lastLogins,
		systems:    systems,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Send prepares the handoff for target. Unless the target opens in a new
// window, the local session is cleared without a redirect.
func (s *Service) Send(ctx context.Context, sid string, target handoff.Target) (*handoff.Handoff, error) {
	rec, err := s.sessions.Read(ctx, sid)
	if err != nil {
		return nil, s.fail(err)
	}
	return s.send(ctx, sid, rec, target)
}

// SendToSystem relays to a registered system after re-checking access.
func (s *Service) SendToSystem(ctx context.Context, sid, systemID string) (*handoff.Handoff, error) {
	rec, err := s.sessions.Read(ctx, sid)
	if err != nil {
		return nil, s.fail(err)
	}
	if rec == nil {
		return nil, s.fail(xerrors.ErrNoSession)
	}

	sys, err := s.systems.Get(ctx, systemID)
	if err != nil {
		return nil, s.fail(err)
	}
	if !role.CanAccessSystem(rec.Companies, sys.Permissions) {
		return nil, s.fail(xerrors.ErrForbidden)
	}

	origin := sys.OriginSystem
	if origin == "" {
		origin = system.DefaultOriginSystem
	}
	return s.send(ctx, sid, rec, handoff.Target{
		URL:               sys.URL,
		OriginSystem:      origin,
		RequestingCompany: sys.RequestingCompany,
		OpenInNewWindow:   sys.OpenInNewWindow,
	})
}

func (s *Service) send(ctx context.Context, sid string, rec *identity.Record, target handoff.Target) (*handoff.Handoff, error) {
	if rec == nil {
		return nil, s.fail(xerrors.ErrNoSession)
	}
	if strings.TrimSpace(rec.Initials) == "" {
		return nil, s.fail(fmt.Errorf("%w: session has no initials", xerrors.ErrNoSession))
	}
	if strings.TrimSpace(target.URL) == "" {
		return nil, s.fail(fmt.Errorf("%w: target url is required", xerrors.ErrInvalidInput))
	}

	ll, err := s.lastLogins.Lookup(ctx, rec.Initials)
	if err != nil {
		return nil, s.fail(err)
	}

	payload, err := Stamp(ll.Response, target.OriginSystem, target.RequestingCompany, s.now())
	if err != nil {
		return nil, s.fail(err)
	}

	h := &handoff.Handoff{
		Action:  NormalizeTarget(target.URL),
		Target:  "_self",
		Field:   handoff.FieldName,
		Payload: string(payload),
	}
	if target.OpenInNewWindow {
		h.Target = "_blank"
	} else {
		if err := s.sessions.Clear(ctx, sid, session.ReasonActiveIngreso, false); err != nil {
			s.logger.Warn("failed to clear session after handoff", zap.String("session_id", sid), zap.Error(err))
		}
		h.SessionEnded = true
	}

	s.metrics.Handoff("sent", "ok")
	s.logger.Info("derived login sent",
		zap.String("iniciales", rec.Initials),
		zap.String("destino", h.Action),
		zap.String("sistema_origen", target.OriginSystem),
		zap.String("empresa_solicitante", target.RequestingCompany),
		zap.Bool("nueva_ventana", target.OpenInNewWindow),
	)
	return h, nil
}

func (s *Service) fail(err error) error {
	s.metrics.Handoff("sent", xerrors.Reason(err))
	return err
}

// Stamp copies the stored payload and sets sistemaOrigen, empresaSolicitante
// and an ISO-8601 timestamp on it.
func Stamp(stored json.RawMessage, originSystem, requestingCompany string, at time.Time) ([]byte, error) {
	var payload map[string]any
	if err := json.Unmarshal(stored, &payload); err != nil || payload == nil {
		return nil, fmt.Errorf("%w: stored payload is not an object", xerrors.ErrNoLastLogin)
	}
	payload["sistemaOrigen"] = originSystem
	payload["empresaSolicitante"] = requestingCompany
	payload["timestamp"] = at.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return json.Marshal(payload)
}

// NormalizeTarget rewrites a path ending in ingreso-derivado.html to the
// ingreso-derivado endpoint, keeping the rest of the URL.
func NormalizeTarget(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return pagePattern.ReplaceAllString(raw, "ingreso-derivado")
	}
	if pagePattern.MatchString(u.Path) {
		u.Path = pagePattern.ReplaceAllString(u.Path, "ingreso-derivado")
		u.RawPath = ""
	}
	return u.String()
}
