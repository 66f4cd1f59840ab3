// internal/service/jornada/service.go
package jornada

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledroitcheck-service/internal/domain/jornada"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/events"
	"ledroitcheck-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

type Service struct {
	store     Store
	publisher events.Publisher
	bus       *events.Bus
	metrics   *metrics.Metrics
	timeout   time.Duration
	logger    *zap.Logger
}

// NewService wires the ledger. publisher carries change events to every
// instance; bus is the local fan-out Subscribe attaches to.
func NewService(store Store, publisher events.Publisher, bus *events.Bus, m *metrics.Metrics, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		store:     store,
		publisher: publisher,
		bus:       bus,
		metrics:   m,
		timeout:   timeout,
		logger:    logger,
	}
}

// Open starts a shift for initials in req.Company.
func (s *Service) Open(ctx context.Context, initials string, req jornada.OpenRequest) (*jornada.OpenResult, error) {
	company := strings.TrimSpace(req.Company)
	userKey := jornada.UserKey(initials)
	if company == "" {
		s.metrics.JornadaOp("open", xerrors.Reason(xerrors.ErrCompanyRequired))
		return nil, xerrors.ErrCompanyRequired
	}
	if userKey == "" {
		s.metrics.JornadaOp("open", xerrors.Reason(xerrors.ErrInitialsRequired))
		return nil, xerrors.ErrInitialsRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	existing, err := s.store.GetOpen(ctx, userKey)
	if err != nil {
		return nil, s.fail("open", userKey, err)
	}
	if existing != nil {
		s.metrics.JornadaOp("open", xerrors.Reason(xerrors.ErrAlreadyOpen))
		return nil, xerrors.ErrAlreadyOpen
	}

	idx, err := s.store.Open(ctx, jornada.OpenCommand{
		UserKey:  userKey,
		Company:  company,
		Location: req.Location,
		Device:   req.Device,
		IP:       req.IP,
	})
	if err != nil {
		return nil, s.fail("open", userKey, err)
	}

	s.metrics.JornadaOp("open", "ok")
	s.logger.Info("jornada opened",
		zap.String("usuario", userKey),
		zap.String("empresa", company),
		zap.String("folio", idx.Folio),
	)
	s.publish(ctx, jornada.EventOpened, jornada.ChangeEvent{
		Status:  "open",
		UserKey: userKey,
		Company: idx.Company,
		Folio:   idx.Folio,
		Index:   idx,
	})

	return &jornada.OpenResult{Folio: idx.Folio, Company: idx.Company, UserKey: userKey}, nil
}

// Close ends the open shift of initials.
func (s *Service) Close(ctx context.Context, initials string) (*jornada.CloseResult, error) {
	userKey := jornada.UserKey(initials)
	if userKey == "" {
		s.metrics.JornadaOp("close", xerrors.Reason(xerrors.ErrInitialsRequired))
		return nil, xerrors.ErrInitialsRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	idx, err := s.store.Close(ctx, userKey)
	if err != nil {
		return nil, s.fail("close", userKey, err)
	}

	s.metrics.JornadaOp("close", "ok")
	s.logger.Info("jornada closed",
		zap.String("usuario", userKey),
		zap.String("empresa", idx.Company),
		zap.String("folio", idx.Folio),
	)
	s.publish(ctx, jornada.EventClosed, jornada.ChangeEvent{
		Status:  "closed",
		UserKey: userKey,
		Company: idx.Company,
		Folio:   idx.Folio,
	})

	return &jornada.CloseResult{Folio: idx.Folio, Company: idx.Company, UserKey: userKey}, nil
}

// GetOpen returns the open index of initials, or nil.
func (s *Service) GetOpen(ctx context.Context, initials string) (*jornada.OpenIndex, error) {
	userKey := jornada.UserKey(initials)
	if userKey == "" {
		return nil, xerrors.ErrInitialsRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	idx, err := s.store.GetOpen(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("get open jornada: %w: %v", xerrors.ErrUnavailable, err)
	}
	return idx, nil
}

// GetLast returns the most recently closed shift of initials across companies, or nil.
func (s *Service) GetLast(ctx context.Context, initials string, companies []string) (*jornada.LastShift, error) {
	userKey := jornada.UserKey(initials)
	if userKey == "" {
		return nil, xerrors.ErrInitialsRequired
	}
	if len(companies) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	shifts, err := s.store.Recent(ctx, userKey, companies, jornada.RecentWindow)
	if err != nil {
		return nil, fmt.Errorf("get last jornada: %w: %v", xerrors.ErrUnavailable, err)
	}
	return jornada.PickLast(shifts), nil
}

// Subscribe calls fn for every open-index change of initials until the
// returned subscription is closed.
func (s *Service) Subscribe(initials string, fn func(jornada.ChangeEvent)) *events.Subscription {
	return s.bus.Subscribe("jornada:", jornada.UserKey(initials), func(e events.Event) {
		var change jornada.ChangeEvent
		if err := e.Decode(&change); err != nil {
			s.logger.Warn("dropping malformed jornada event", zap.Error(err))
			return
		}
		fn(change)
	})
}

func (s *Service) fail(op, userKey string, err error) error {
	if errors.Is(err, xerrors.ErrAlreadyOpen) || errors.Is(err, xerrors.ErrNoOpenJornada) {
		s.metrics.JornadaOp(op, xerrors.Reason(err))
		return err
	}
	s.metrics.JornadaOp(op, xerrors.Reason(xerrors.ErrUnavailable))
	s.logger.Error("jornada store failed",
		zap.String("op", op),
		zap.String("usuario", userKey),
		zap.Error(err),
	)
	return fmt.Errorf("%s jornada: %w", op, xerrors.ErrUnavailable)
}

func (s *Service) publish(ctx context.Context, eventType string, change jornada.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	e, err := events.New(eventType, change.UserKey, change)
	if err != nil {
		s.logger.Warn("failed to build jornada event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish jornada event", zap.String("event", eventType), zap.Error(err))
	}
}
