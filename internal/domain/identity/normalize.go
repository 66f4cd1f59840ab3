// internal/domain/identity/normalize.go
package identity

import (
	"encoding/json"
	"strings"
	"time"
)

var (
	initialsKeys = []string{"iniciales", "initials"}
	nameKeys     = []string{"nombre", "name", "displayName"}
	photoKeys    = []string{"foto_url", "fotoUrl", "photoUrl", "photoURL", "avatar"}
	companyKeys  = []string{"empresas", "companies"}
	selectedKeys = []string{"empresaSeleccionada", "selectedCompany"}
	originKeys   = []string{"sistemaOrigen", "originSystem"}
)

// Normalize coalesces a loosely shaped identity object into a Record. Fields
// may sit at the top level or under "user", with Spanish or English names.
// A nil map yields nil.
func Normalize(raw map[string]any) *Record {
	if raw == nil {
		return nil
	}
	user, _ := raw["user"].(map[string]any)
	sources := []map[string]any{raw, user}

	rec := &Record{
		Initials:     NormalizeInitials(pickString(sources, initialsKeys)),
		DisplayName:  pickString(sources, nameKeys),
		PhotoURL:     SanitizePhotoURL(pickString(sources, photoKeys)),
		Companies:    []Company{},
		OriginSystem: pickString(sources, originKeys),
		Timestamp:    parseTimestamp(raw["timestamp"]),
		Verified:     raw["verificado"] == true,
	}

	if list, ok := pick(sources, companyKeys).([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				rec.Companies = append(rec.Companies, normalizeCompany(m))
			}
		}
	}

	if m, ok := pick(sources, selectedKeys).(map[string]any); ok {
		name := firstString(m, "nombre", "name")
		if name != "" {
			rec.SelectedCompany = &SelectedCompany{Name: name, Roles: normalizeRoles(firstOf(m, "rol", "roles", "role"))}
		}
	}

	return rec
}

// NormalizeValue accepts any decoded JSON value; non-objects yield nil.
func NormalizeValue(v any) *Record {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return Normalize(m)
}

// NormalizeJSON decodes b and normalizes it; malformed or non-object input yields nil.
func NormalizeJSON(b []byte) *Record {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	return NormalizeValue(v)
}

// NormalizeInitials uppercases ASCII letters and leaves everything else untouched.
func NormalizeInitials(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}, s)
}

// SanitizePhotoURL strips whitespace, backticks and quotes.
func SanitizePhotoURL(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '`', '\'', '"', ' ', '\t', '\n', '\r', '\f', '\v':
			return -1
		}
		return r
	}, s)
}

func normalizeCompany(m map[string]any) Company {
	return Company{
		Name:          firstString(m, "nombre", "name", "empresa"),
		CompanyActive: flag(firstOf(m, "empresa_activa", "companyActive")),
		UserActive:    flag(firstOf(m, "usuario_activo", "userActive")),
		Roles:         normalizeRoles(firstOf(m, "rol", "roles", "role")),
	}
}

// flag treats anything but an explicit boolean as true.
func flag(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func normalizeRoles(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range t {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC()
		}
	case float64:
		if t > 0 {
			return time.UnixMilli(int64(t)).UTC()
		}
	}
	return time.Time{}
}

func pick(sources []map[string]any, keys []string) any {
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, k := range keys {
			if v, ok := src[k]; ok && v != nil {
				return v
			}
		}
	}
	return nil
}

func pickString(sources []map[string]any, keys []string) string {
	for _, src := range sources {
		if s := firstString(src, keys...); s != "" {
			return s
		}
	}
	return ""
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
