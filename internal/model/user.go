package model

import "time"

// UserProfile is the slice of the user-profile store the coordinator needs:
// a stable identity and the pre-registered counterpart ("spouse") identity
// used by the matching rule. Authentication itself is external.
type UserProfile struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"displayName"`
	PartnerID   *string   `db:"partner_id" json:"partnerId,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
