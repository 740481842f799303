package auction

import (
	"slices"

	"github.com/google/uuid"
)

// Role is a capability claim carried by an authenticated principal.
type Role string

const (
	RolePlayer      Role = "player"
	RoleOrganizer   Role = "organizer"
	RoleAdmin       Role = "admin"
	RoleUmpire      Role = "umpire"
	RoleGroundOwner Role = "ground_owner"
	RoleTeamOwner   Role = "team_owner"
)

// Principal is an already-authenticated caller. The engine trusts its claims.
type Principal struct {
	UserID  string      `json:"user_id"`
	Roles   []Role      `json:"roles"`
	TeamIDs []uuid.UUID `json:"team_ids"`
}

// System is the principal used for engine-initiated transitions.
var System = Principal{UserID: "system", Roles: []Role{RoleAdmin}}

func (p Principal) HasRole(r Role) bool {
	return slices.Contains(p.Roles, r)
}

// CanBid reports whether p may place bids on behalf of teamID.
func (p Principal) CanBid(teamID uuid.UUID) bool {
	return slices.Contains(p.TeamIDs, teamID)
}

// CanAdminister reports whether p may start, pause or resolve the auction.
func (p Principal) CanAdminister() bool {
	return p.HasRole(RoleOrganizer) || p.HasRole(RoleAdmin)
}
