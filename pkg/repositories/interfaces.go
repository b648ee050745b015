package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

// PartnerRepo defines the interface for partner repository operations
type PartnerRepo interface {
	Create(ctx context.Context, partner *models.Partner) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	GetByBpnl(ctx context.Context, bpnl string) (*models.Partner, error)
	List(ctx context.Context) ([]models.Partner, error)
	Update(ctx context.Context, partner *models.Partner) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MaterialRepo defines the interface for material and relation repository operations
type MaterialRepo interface {
	Upsert(ctx context.Context, material *models.Material) error
	Get(ctx context.Context, ownMaterialNumber string) (*models.Material, error)
	GetByCXNumber(ctx context.Context, cx string) (*models.Material, error)
	List(ctx context.Context) ([]models.Material, error)
	UpsertRelation(ctx context.Context, rel *models.MaterialPartnerRelation) error
	GetRelation(ctx context.Context, ownMaterialNumber string, partnerID uuid.UUID) (*models.MaterialPartnerRelation, error)
	GetRelationByPartnerCX(ctx context.Context, partnerID uuid.UUID, cx string) (*models.MaterialPartnerRelation, error)
	ListRelationsByPartner(ctx context.Context, partnerID uuid.UUID) ([]models.MaterialPartnerRelation, error)
	SetPartnerCXNumber(ctx context.Context, ownMaterialNumber string, partnerID uuid.UUID, cx string) error
}

// ErpRequestRepo defines the interface for outgoing ERP request operations
type ErpRequestRepo interface {
	Create(ctx context.Context, req *models.OutgoingErpRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OutgoingErpRequest, error)
	SetResponseCode(ctx context.Context, id uuid.UUID, code int) error
	MarkAnswered(ctx context.Context, id uuid.UUID) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]models.OutgoingErpRequest, error)
}

var (
	_ PartnerRepo    = (*PartnerRepository)(nil)
	_ MaterialRepo   = (*MaterialRepository)(nil)
	_ ErpRequestRepo = (*ErpRequestRepository)(nil)
)
