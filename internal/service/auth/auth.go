// internal/service/auth/auth.go
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledroitcheck-service/internal/domain/handoff"
	"ledroitcheck-service/internal/domain/identity"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type Master interface {
	Authenticate(ctx context.Context, usuario, password string) (map[string]any, error)
	Refresh(ctx context.Context, initials string) (map[string]any, error)
}

type LastLogins interface {
	Save(ctx context.Context, ll *handoff.LastLogin) error
	Lookup(ctx context.Context, initials string) (*handoff.LastLogin, error)
}

type Sessions interface {
	Establish(ctx context.Context, rec *identity.Record) (string, error)
	Read(ctx context.Context, sid string) (*identity.Record, error)
	Write(ctx context.Context, sid string, rec *identity.Record) error
}

type TokenIssuer interface {
	GenerateSessionToken(sessionID, initials string) (string, error)
}

// LoginResult is a successful master login.
type LoginResult struct {
	SessionID string           `json:"session_id"`
	Token     string           `json:"token"`
	Session   *identity.Record `json:"session"`
}

// Service signs users in through the master system and keeps their
// entitlements current.
type Service struct {
	master     Master
	lastLogins LastLogins
	sessions   Sessions
	tokens     TokenIssuer
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(master Master, lastLogins LastLogins, sessions Sessions, tokens TokenIssuer, logger *zap.Logger) *Service {
	return &Service{
		master:     master,
		lastLogins: lastLogins,
		sessions:   sessions,
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
	}
}

// Login authenticates against the master, records the result as the user's
// last successful login and opens a session.
func (s *Service) Login(ctx context.Context, usuario, password string) (*LoginResult, error) {
	usuario = strings.TrimSpace(usuario)
	if usuario == "" || password == "" {
		return nil, fmt.Errorf("usuario and password are required: %w", xerrors.ErrInvalidInput)
	}

	result, err := s.master.Authenticate(ctx, usuario, password)
	if err != nil {
		s.logger.Info("master login failed", zap.String("usuario", usuario), zap.Error(err))
		return nil, err
	}

	data, _ := result["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	data = withLoginDefaults(data, usuario)
	result["data"] = data

	rec := identity.Normalize(data)
	rec.Timestamp = s.now().UTC()
	rec.OriginSystem = handoff.DefaultOriginSystem
	rec.Verified = true

	if err := s.saveLastLogin(ctx, rec.Initials, result); err != nil {
		return nil, err
	}

	sid, err := s.sessions.Establish(ctx, rec)
	if err != nil {
		return nil, err
	}

	out := &LoginResult{SessionID: sid, Session: rec}
	if s.tokens != nil {
		token, err := s.tokens.GenerateSessionToken(sid, rec.Initials)
		if err != nil {
			return nil, fmt.Errorf("failed to issue session token: %w", err)
		}
		out.Token = token
	}

	s.logger.Info("master login succeeded",
		zap.String("iniciales", rec.Initials),
		zap.Int("empresas", len(rec.Companies)),
	)
	return out, nil
}

// Refresh reloads companies and profile fields for the session. The master is
// asked first. When it cannot answer, a verified session is left untouched and
// an unverified one is reloaded from the last successful login without roles.
// The selected company is kept while it stays active.
func (s *Service) Refresh(ctx context.Context, sid string) (*identity.Record, error) {
	rec, err := s.sessions.Read(ctx, sid)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, xerrors.ErrNoSession
	}
	if rec.Initials == "" {
		return nil, fmt.Errorf("%w: session has no initials", xerrors.ErrNoSession)
	}

	data, verified, err := s.latestData(ctx, rec)
	if err != nil {
		return nil, err
	}
	if data == nil {
		s.logger.Info("no entitlements to refresh", zap.String("iniciales", rec.Initials))
		return rec, nil
	}

	fresh := identity.Normalize(data)
	if fresh.DisplayName != "" {
		rec.DisplayName = fresh.DisplayName
	}
	if fresh.PhotoURL != "" {
		rec.PhotoURL = fresh.PhotoURL
	}
	rec.Companies = fresh.Companies
	rec.Verified = verified
	if !verified {
		rec.Restrict()
	}

	if rec.SelectedCompany != nil && !rec.Select(rec.SelectedCompany.Name) {
		rec.SelectedCompany = nil
	}
	if rec.SelectedCompany == nil {
		rec.ApplySelectionRule()
	}

	if err := s.sessions.Write(ctx, sid, rec); err != nil {
		return nil, err
	}
	s.logger.Info("session refreshed",
		zap.String("iniciales", rec.Initials),
		zap.Int("empresas", len(rec.Companies)),
		zap.Bool("verificado", verified),
	)
	return rec, nil
}

// latestData returns the data object to refresh rec from and whether the
// master vouched for it. A nil object means there is nothing to apply.
func (s *Service) latestData(ctx context.Context, rec *identity.Record) (map[string]any, bool, error) {
	initials := rec.Initials
	if s.master != nil {
		result, err := s.master.Refresh(ctx, initials)
		if err == nil {
			if data := successData(result); data != nil {
				if err := s.saveLastLogin(ctx, initials, result); err != nil {
					s.logger.Warn("failed to record refreshed login", zap.String("iniciales", initials), zap.Error(err))
				}
				return data, true, nil
			}
		}
		s.logger.Warn("master refresh failed", zap.String("iniciales", initials), zap.Error(err))
	}
	if rec.Verified {
		return nil, false, nil
	}

	ll, err := s.lastLogins.Lookup(ctx, initials)
	switch {
	case errors.Is(err, xerrors.ErrNoLastLogin):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	var stored map[string]any
	if jsonErr := json.Unmarshal(ll.Response, &stored); jsonErr != nil {
		s.logger.Warn("stored last login is not an object", zap.String("iniciales", initials))
		return nil, false, nil
	}
	return successData(stored), false, nil
}

func (s *Service) saveLastLogin(ctx context.Context, initials string, result map[string]any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode master result: %w", err)
	}
	return s.lastLogins.Save(ctx, &handoff.LastLogin{
		Initials:     initials,
		Response:     raw,
		OriginSystem: handoff.DefaultOriginSystem,
		UpdatedAt:    s.now().UTC(),
	})
}

// withLoginDefaults fills nombre from usuario and iniciales from its first
// two characters when the master omits them.
func withLoginDefaults(data map[string]any, usuario string) map[string]any {
	if name, _ := data["nombre"].(string); strings.TrimSpace(name) == "" {
		data["nombre"] = usuario
	}
	if ini, _ := data["iniciales"].(string); strings.TrimSpace(ini) == "" {
		r := []rune(usuario)
		if len(r) > 2 {
			r = r[:2]
		}
		data["iniciales"] = strings.ToUpper(string(r))
	}
	return data
}

func successData(m map[string]any) map[string]any {
	if ok, _ := m["success"].(bool); !ok {
		return nil
	}
	data, _ := m["data"].(map[string]any)
	return data
}
