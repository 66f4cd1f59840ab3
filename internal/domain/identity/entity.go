// internal/domain/identity/entity.go
package identity

import "time"

// Record is the authenticated identity carried across systems. JSON field
// names follow the master system's payloads.
type Record struct {
	Initials        string           `json:"iniciales"`
	DisplayName     string           `json:"nombre"`
	PhotoURL        string           `json:"foto_url"`
	Companies       []Company        `json:"empresas"`
	SelectedCompany *SelectedCompany `json:"empresaSeleccionada"`
	Timestamp       time.Time        `json:"timestamp"`
	OriginSystem    string           `json:"sistemaOrigen,omitempty"`
	// Verified is set when the companies and roles came from the master system.
	Verified        bool             `json:"verificado"`
}

// Company is one company membership. Access is granted only when both flags are set.
type Company struct {
	Name          string   `json:"nombre"`
	CompanyActive bool     `json:"empresa_activa"`
	UserActive    bool     `json:"usuario_activo"`
	Roles         []string `json:"rol"`
}

// SelectedCompany is the company the user is currently operating as.
type SelectedCompany struct {
	Name  string   `json:"nombre"`
	Roles []string `json:"rol"`
}

// Grants reports whether the membership is usable.
func (c Company) Grants() bool {
	return c.CompanyActive && c.UserActive
}

// ActiveCompanies returns memberships where both flags are set, in order.
func (r *Record) ActiveCompanies() []Company {
	out := make([]Company, 0, len(r.Companies))
	for _, c := range r.Companies {
		if c.Grants() {
			out = append(out, c)
		}
	}
	return out
}

// CompanyNames lists every company name, active or not.
func (r *Record) CompanyNames() []string {
	names := make([]string, 0, len(r.Companies))
	for _, c := range r.Companies {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}

// ApplySelectionRule auto-selects the only active company and clears the
// selection when the user must choose among several.
func (r *Record) ApplySelectionRule() {
	active := r.ActiveCompanies()
	switch {
	case len(active) == 1:
		r.SelectedCompany = &SelectedCompany{Name: active[0].Name, Roles: cloneRoles(active[0].Roles)}
	case len(active) > 1:
		r.SelectedCompany = nil
	}
}

// Select marks name as the operating company. It must be active.
func (r *Record) Select(name string) bool {
	for _, c := range r.ActiveCompanies() {
		if c.Name == name {
			r.SelectedCompany = &SelectedCompany{Name: c.Name, Roles: cloneRoles(c.Roles)}
			return true
		}
	}
	return false
}

// Restrict drops every role, leaving memberships for display only. The record
// then grants nothing beyond its identity.
func (r *Record) Restrict() {
	for i := range r.Companies {
		r.Companies[i].Roles = nil
	}
	if r.SelectedCompany != nil {
		r.SelectedCompany.Roles = nil
	}
	r.Verified = false
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := *r
	out.Companies = make([]Company, len(r.Companies))
	for i, c := range r.Companies {
		c.Roles = cloneRoles(c.Roles)
		out.Companies[i] = c
	}
	if r.SelectedCompany != nil {
		sc := *r.SelectedCompany
		sc.Roles = cloneRoles(sc.Roles)
		out.SelectedCompany = &sc
	}
	return &out
}

func cloneRoles(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
