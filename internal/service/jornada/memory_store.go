// internal/service/jornada/memory_store.go
package jornada

import (
	"context"
	"sort"
	"sync"
	"time"

	"ledroitcheck-service/internal/domain/jornada"
	xerrors "ledroitcheck-service/internal/pkg/errors"
)

type counterKey struct {
	company string
	user    string
}

// MemoryStore is a single-process Store. One mutex serializes open and close.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[counterKey]int64
	shifts   map[counterKey][]jornada.Shift
	open     map[string]jornada.OpenIndex
	now      func() time.Time
	loc      *time.Location
}

func NewMemoryStore(loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.Local
	}
	return &MemoryStore{
		counters: make(map[counterKey]int64),
		shifts:   make(map[counterKey][]jornada.Shift),
		open:     make(map[string]jornada.OpenIndex),
		now:      time.Now,
		loc:      loc,
	}
}

func (m *MemoryStore) GetOpen(_ context.Context, userKey string) (*jornada.OpenIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.open[userKey]
	if !ok {
		return nil, nil
	}
	return &idx, nil
}

func (m *MemoryStore) Open(_ context.Context, cmd jornada.OpenCommand) (*jornada.OpenIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.open[cmd.UserKey]; ok {
		return nil, xerrors.ErrAlreadyOpen
	}

	key := counterKey{company: cmd.Company, user: cmd.UserKey}
	m.counters[key]++
	now := m.now().UTC()

	idx := jornada.OpenIndex{
		UserKey:   cmd.UserKey,
		Company:   cmd.Company,
		Folio:     jornada.FormatFolio(m.counters[key], now.In(m.loc)),
		EntryTime: now,
	}
	m.shifts[key] = append(m.shifts[key], jornada.Shift{
		Folio:     idx.Folio,
		Company:   cmd.Company,
		UserKey:   cmd.UserKey,
		EntryTime: now,
		State:     jornada.StateOpen,
		Location:  cmd.Location,
		Device:    cmd.Device,
		IP:        cmd.IP,
	})
	m.open[cmd.UserKey] = idx
	return &idx, nil
}

func (m *MemoryStore) Close(_ context.Context, userKey string) (*jornada.OpenIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.open[userKey]
	if !ok {
		return nil, xerrors.ErrNoOpenJornada
	}

	key := counterKey{company: idx.Company, user: userKey}
	list := m.shifts[key]
	for i := range list {
		if list[i].Folio == idx.Folio {
			exit := m.now().UTC()
			list[i].ExitTime = &exit
			list[i].State = jornada.StateClosed
		}
	}
	delete(m.open, userKey)
	return &idx, nil
}

func (m *MemoryStore) Recent(_ context.Context, userKey string, companies []string, perCompany int) ([]jornada.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []jornada.Shift
	for _, company := range companies {
		list := append([]jornada.Shift(nil), m.shifts[counterKey{company: company, user: userKey}]...)
		sort.SliceStable(list, func(i, j int) bool { return list[i].EntryTime.After(list[j].EntryTime) })
		if len(list) > perCompany {
			list = list[:perCompany]
		}
		out = append(out, list...)
	}
	return out, nil
}

// Shifts returns every stored shift of userKey in company, oldest first.
func (m *MemoryStore) Shifts(company, userKey string) []jornada.Shift {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]jornada.Shift(nil), m.shifts[counterKey{company: company, user: userKey}]...)
}
