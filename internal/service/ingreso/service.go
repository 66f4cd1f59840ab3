// internal/service/ingreso/service.go
package ingreso

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ledroitcheck-service/internal/domain/handoff"
	"ledroitcheck-service/internal/domain/identity"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/metrics"
	"ledroitcheck-service/internal/service/audit"

	"go.uber.org/zap"
)

type LastLoginSaver interface {
	Save(ctx context.Context, ll *handoff.LastLogin) error
}

type Auditor interface {
	Report(ctx context.Context, ev handoff.AuditEvent)
}

type SessionEstablisher interface {
	Establish(ctx context.Context, rec *identity.Record) (string, error)
}

// Entitlements answers, for a user, the companies and roles the master system
// currently grants.
type Entitlements interface {
	Refresh(ctx context.Context, initials string) (map[string]any, error)
}

// Result is an accepted handoff.
type Result struct {
	Session   *identity.Record
	Payload   json.RawMessage
	SessionID string
}

// Service accepts derived logins sent by partner systems.
type Service struct {
	lastLogins LastLoginSaver
	auditor    Auditor
	sessions   SessionEstablisher
	master     Entitlements
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(lastLogins LastLoginSaver, auditor Auditor, sessions SessionEstablisher, master Entitlements, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		lastLogins: lastLogins,
		auditor:    auditor,
		sessions:   sessions,
		master:     master,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Receive validates a decoded body and builds the session it carries. Backup,
// audit and server-side session failures are logged and do not fail the call.
func (s *Service) Receive(ctx context.Context, body any) (*Result, error) {
	payload, err := Unwrap(body)
	if err != nil {
		s.metrics.Handoff("received", xerrors.Reason(err))
		return nil, err
	}
	data, err := Validate(payload)
	if err != nil {
		s.metrics.Handoff("received", xerrors.Reason(err))
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode payload: %w", err)
	}

	rec := identity.Normalize(data)
	rec.Verified = false
	rec.Timestamp = s.now().UTC()
	rec.OriginSystem = handoff.DefaultOriginSystem
	if origin, ok := payload["sistemaOrigen"].(string); ok && strings.TrimSpace(origin) != "" {
		rec.OriginSystem = origin
	}

	key := rec.Initials
	if key == "" {
		key = handoff.MissingInitialsKey
	}
	if s.lastLogins != nil {
		err := s.lastLogins.Save(ctx, &handoff.LastLogin{
			Initials:     key,
			Response:     raw,
			OriginSystem: rec.OriginSystem,
			UpdatedAt:    rec.Timestamp,
		})
		if err != nil {
			s.logger.Error("failed to store derived login backup", zap.String("id_doc", key), zap.Error(err))
		} else {
			s.logger.Info("derived login backup stored", zap.String("id_doc", key), zap.Int("empresas", len(rec.Companies)))
		}
	}

	if s.auditor != nil {
		var initials *string
		if rec.Initials != "" {
			v := rec.Initials
			initials = &v
		}
		s.auditor.Report(ctx, handoff.AuditEvent{
			System:        audit.SystemName,
			Initials:      initials,
			CompanyCount:  len(rec.Companies),
			Success:       true,
			TimestampMsec: s.now().UnixMilli(),
		})
	}

	res := &Result{Session: rec, Payload: raw}
	if s.sessions != nil && rec.Initials != "" {
		sid, err := s.sessions.Establish(ctx, s.serverRecord(ctx, rec))
		if err != nil {
			s.logger.Error("failed to establish server session", zap.String("iniciales", rec.Initials), zap.Error(err))
		} else {
			res.SessionID = sid
		}
	}

	s.metrics.Handoff("received", "ok")
	return res, nil
}

// serverRecord builds the record behind the server session. A handoff body
// only asserts an identity, so companies and roles are taken from the master.
// When the master cannot confirm them the session keeps no roles.
func (s *Service) serverRecord(ctx context.Context, claimed *identity.Record) *identity.Record {
	rec := claimed.Clone()
	if s.master == nil {
		rec.Restrict()
		return rec
	}

	result, err := s.master.Refresh(ctx, rec.Initials)
	var data map[string]any
	if err == nil {
		if ok, _ := result["success"].(bool); ok {
			data, _ = result["data"].(map[string]any)
		}
	}
	if data == nil {
		s.logger.Warn("master did not confirm derived login entitlements",
			zap.String("iniciales", rec.Initials),
			zap.Error(err),
		)
		rec.Restrict()
		return rec
	}

	fresh := identity.Normalize(data)
	rec.Companies = fresh.Companies
	if fresh.DisplayName != "" {
		rec.DisplayName = fresh.DisplayName
	}
	rec.SelectedCompany = nil
	rec.Verified = true
	return rec
}
