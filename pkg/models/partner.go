package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
)

// Site is one of a partner's BPNS with its addresses.
type Site struct {
	Bpns      string   `json:"bpns" validate:"required"`
	Name      string   `json:"name,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

type Partner struct {
	ID        uuid.UUID              `db:"id" json:"id"`
	Name      string                 `db:"name" json:"name" validate:"required"`
	Bpnl      string                 `db:"bpnl" json:"bpnl" validate:"required,bpnl"`
	EdcURL    string                 `db:"edc_url" json:"edc_url" validate:"required,url"`
	Sites     database.JSONB[[]Site] `db:"sites" json:"sites"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt time.Time              `db:"updated_at" json:"updated_at"`
}

func (Partner) TableName() string {
	return "partners"
}

// OwnsSite reports whether bpns is one of the partner's sites. A partner without
// configured sites owns every site.
func (p *Partner) OwnsSite(bpns string) bool {
	if len(p.Sites.Data) == 0 {
		return true
	}
	for _, site := range p.Sites.Data {
		if site.Bpns == bpns {
			return true
		}
	}
	return false
}
