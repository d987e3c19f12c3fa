// Package access resuelve qué roles tiene cada principal según el config.
package access

import (
	"slices"
	"sort"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

// Policy es una tabla principal → roles. Es inmutable tras New.
type Policy struct {
	roles map[string][]domain.Role
}

// Lists agrupa los principals por rol, tal como vienen del config.
type Lists struct {
	Admins       []string `yaml:"admins"`
	Operators    []string `yaml:"operators"`
	MarketMakers []string `yaml:"market_makers"`
}

// New construye la política. Los principals vacíos se ignoran.
func New(l Lists) *Policy {
	p := &Policy{roles: make(map[string][]domain.Role)}
	p.add(domain.RoleAdmin, l.Admins)
	p.add(domain.RoleOperator, l.Operators)
	p.add(domain.RoleMarketMaker, l.MarketMakers)
	return p
}

func (p *Policy) add(role domain.Role, principals []string) {
	for _, who := range principals {
		if who == "" || slices.Contains(p.roles[who], role) {
			continue
		}
		p.roles[who] = append(p.roles[who], role)
	}
}

// Grant devuelve la capability de who. Un principal desconocido recibe un
// grant sin roles: toda operación administrativa le devuelve Unauthorized.
func (p *Policy) Grant(who string) domain.Grant {
	return domain.Grant{Who: who, Roles: slices.Clone(p.roles[who])}
}

// Principals devuelve los principals con algún rol, ordenados.
func (p *Policy) Principals() []string {
	out := make([]string, 0, len(p.roles))
	for who := range p.roles {
		out = append(out, who)
	}
	sort.Strings(out)
	return out
}
