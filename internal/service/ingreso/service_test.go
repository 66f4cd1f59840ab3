package ingreso

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"

	"ledroitcheck-service/internal/domain/handoff"
	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/role"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validPayload = `{"success":true,"data":{"iniciales":"jp","nombre":"Juan","empresas":[{"nombre":"ACME","empresa_activa":true,"usuario_activo":true,"rol":"A2"}]}}`

type saverStub struct {
	mu    sync.Mutex
	saved []*handoff.LastLogin
	err   error
}

func (s *saverStub) Save(_ context.Context, ll *handoff.LastLogin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, ll)
	return s.err
}

type auditorStub struct {
	events []handoff.AuditEvent
}

func (a *auditorStub) Report(_ context.Context, ev handoff.AuditEvent) {
	a.events = append(a.events, ev)
}

type establisherStub struct {
	records []*identity.Record
	err     error
}

func (e *establisherStub) Establish(_ context.Context, rec *identity.Record) (string, error) {
	e.records = append(e.records, rec)
	if e.err != nil {
		return "", e.err
	}
	return "sid-1", nil
}

type masterStub struct {
	result map[string]any
	err    error
	asked  []string
}

func (m *masterStub) Refresh(_ context.Context, initials string) (map[string]any, error) {
	m.asked = append(m.asked, initials)
	return m.result, m.err
}

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestUnwrapShapes(t *testing.T) {
	encoded, _ := json.Marshal(validPayload)

	cases := map[string]any{
		"direct":                 decode(t, validPayload),
		"under respuestaLMaster": decode(t, `{"respuestaLMaster":`+validPayload+`}`),
		"under data":             decode(t, `{"data":`+validPayload+`}`),
		"double encoded":         decode(t, `{"respuestaLMaster":`+string(encoded)+`}`),
		"whole body string":      validPayload,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			payload, err := Unwrap(body)
			require.NoError(t, err)
			_, err = Validate(payload)
			assert.NoError(t, err)
		})
	}
}

func TestUnwrapRejectsNonObjects(t *testing.T) {
	for _, body := range []any{nil, "not json", 42.0, []any{1.0}, decode(t, `{"respuestaLMaster":"[1,2]"}`)} {
		_, err := Unwrap(body)
		assert.ErrorIs(t, err, xerrors.ErrInvalidBody, "%v", body)
	}
}

func TestValidateStructure(t *testing.T) {
	bad := []string{
		`{"success":false,"data":{"iniciales":"JP"}}`,
		`{"success":true}`,
		`{"success":true,"data":{}}`,
		`{"success":true,"data":"JP"}`,
		`{"data":{"iniciales":"JP"}}`,
	}
	for _, s := range bad {
		_, err := Validate(decode(t, s).(map[string]any))
		assert.ErrorIs(t, err, xerrors.ErrInvalidStructure, s)
	}
}

func TestDecodeBodyForm(t *testing.T) {
	form := url.Values{handoff.FieldName: {validPayload}}.Encode()
	body := DecodeBody("application/x-www-form-urlencoded; charset=UTF-8", []byte(form))

	payload, err := Unwrap(body)
	require.NoError(t, err)
	assert.Equal(t, true, payload["success"])
}

func TestReceiveBuildsSession(t *testing.T) {
	saver := &saverStub{}
	auditor := &auditorStub{}
	sessions := &establisherStub{}
	svc := NewService(saver, auditor, sessions, nil, nil, zap.NewNop())

	body := decode(t, `{"respuestaLMaster":`+validPayload+`}`)
	res, err := svc.Receive(context.Background(), body)
	require.NoError(t, err)

	assert.Equal(t, "JP", res.Session.Initials)
	assert.Equal(t, "Juan", res.Session.DisplayName)
	assert.Equal(t, handoff.DefaultOriginSystem, res.Session.OriginSystem)
	require.Len(t, res.Session.Companies, 1)
	assert.False(t, res.Session.Timestamp.IsZero())
	assert.Equal(t, "sid-1", res.SessionID)
	assert.JSONEq(t, validPayload, string(res.Payload))

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "JP", saver.saved[0].Initials)
	assert.JSONEq(t, validPayload, string(saver.saved[0].Response))

	require.Len(t, auditor.events, 1)
	require.NotNil(t, auditor.events[0].Initials)
	assert.Equal(t, "JP", *auditor.events[0].Initials)
	assert.Equal(t, 1, auditor.events[0].CompanyCount)
	assert.True(t, auditor.events[0].Success)
}

func TestReceiveKeepsOriginAndSentinelKey(t *testing.T) {
	saver := &saverStub{}
	auditor := &auditorStub{}
	svc := NewService(saver, auditor, &establisherStub{}, nil, nil, zap.NewNop())

	body := decode(t, `{"success":true,"sistemaOrigen":"DECLAROFACTUR","data":{"user":{"nombre":"Sin"}}}`)
	res, err := svc.Receive(context.Background(), body)
	require.NoError(t, err)

	assert.Equal(t, "DECLAROFACTUR", res.Session.OriginSystem)
	assert.Empty(t, res.SessionID, "no server session without initials")
	assert.Equal(t, handoff.MissingInitialsKey, saver.saved[0].Initials)
	assert.Nil(t, auditor.events[0].Initials)
}

func TestReceiveToleratesBackupFailures(t *testing.T) {
	saver := &saverStub{err: errors.New("db down")}
	sessions := &establisherStub{err: errors.New("redis down")}
	svc := NewService(saver, &auditorStub{}, sessions, nil, nil, zap.NewNop())

	res, err := svc.Receive(context.Background(), decode(t, validPayload))
	require.NoError(t, err)
	assert.Equal(t, "JP", res.Session.Initials)
	assert.Empty(t, res.SessionID)
}

func TestReceiveRejectsInvalid(t *testing.T) {
	saver := &saverStub{}
	svc := NewService(saver, &auditorStub{}, &establisherStub{}, nil, nil, zap.NewNop())

	_, err := svc.Receive(context.Background(), "garbage")
	assert.ErrorIs(t, err, xerrors.ErrInvalidBody)

	_, err = svc.Receive(context.Background(), decode(t, `{"success":false,"data":{"a":1}}`))
	assert.ErrorIs(t, err, xerrors.ErrInvalidStructure)

	assert.Empty(t, saver.saved, "no state is written for invalid bodies")
}

func TestReceiveTakesSessionRolesFromMaster(t *testing.T) {
	sessions := &establisherStub{}
	master := &masterStub{result: map[string]any{
		"success": true,
		"data": map[string]any{
			"empresas": []any{map[string]any{"nombre": "ACME", "empresa_activa": true, "usuario_activo": true, "rol": "A4"}},
		},
	}}
	svc := NewService(nil, nil, sessions, master, nil, zap.NewNop())

	res, err := svc.Receive(context.Background(), decode(t, validPayload))
	require.NoError(t, err)
	assert.Equal(t, []string{"JP"}, master.asked)

	require.Len(t, sessions.records, 1)
	established := sessions.records[0]
	assert.True(t, established.Verified)
	require.Len(t, established.Companies, 1)
	assert.Equal(t, []string{"A4"}, established.Companies[0].Roles)
	assert.False(t, role.CanConfigure(established.Companies), "claimed A2 must not survive")

	assert.Equal(t, []string{"A2"}, res.Session.Companies[0].Roles, "the bootstrap page still echoes the handoff")
}

func TestReceiveUnconfirmedHandoffGrantsNoRoles(t *testing.T) {
	forged := `{"success":true,"data":{"iniciales":"X","verificado":true,"empresas":[{"nombre":"ACME","empresa_activa":true,"usuario_activo":true,"rol":["A1"]}]}}`

	cases := map[string]Entitlements{
		"no master":      nil,
		"master down":    &masterStub{err: xerrors.ErrUnavailable},
		"master rejects": &masterStub{result: map[string]any{"success": false}},
	}
	for name, master := range cases {
		t.Run(name, func(t *testing.T) {
			sessions := &establisherStub{}
			svc := NewService(nil, nil, sessions, master, nil, zap.NewNop())

			_, err := svc.Receive(context.Background(), decode(t, forged))
			require.NoError(t, err)

			require.Len(t, sessions.records, 1)
			established := sessions.records[0]
			assert.False(t, established.Verified)
			assert.Equal(t, "X", established.Initials)
			require.Len(t, established.Companies, 1)
			assert.Empty(t, established.Companies[0].Roles)
			assert.False(t, role.CanConfigure(established.Companies))
			assert.False(t, role.CanUseRelays(established.Companies))
		})
	}
}
