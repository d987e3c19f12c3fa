package domain

// Role es un permiso administrativo.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleOperator    Role = "operator"
	RoleMarketMaker Role = "market_maker"
)

// Capability es la prueba de autorización que el caller pasa a las operaciones
// administrativas. El pool no sabe de dónde viene; solo pregunta.
type Capability interface {
	Principal() string
	Has(role Role) bool
}

// Grant es una Capability estática.
type Grant struct {
	Who   string
	Roles []Role
}

func (g Grant) Principal() string { return g.Who }

// Has devuelve true si el grant incluye el rol. Admin implica todos los roles.
func (g Grant) Has(role Role) bool {
	for _, r := range g.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// Require devuelve UnauthorizedError si c es nil o no tiene ninguno de los roles.
func Require(op string, c Capability, roles ...Role) error {
	if c == nil {
		return UnauthorizedError(op, "missing capability")
	}
	for _, r := range roles {
		if c.Has(r) {
			return nil
		}
	}
	return UnauthorizedError(op, "principal "+c.Principal()+" lacks required role")
}
