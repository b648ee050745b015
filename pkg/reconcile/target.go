package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Holder says whose data a sync key describes. Directions are seen from the holder.
type Holder int

const (
	HeldByPartner Holder = iota
	HeldByUs
)

func (h Holder) String() string {
	if h == HeldByUs {
		return "own"
	}
	return "partner"
}

// PartnerSupplies reports whether data of direction d held by h concerns material the
// partner supplies to us.
func PartnerSupplies(h Holder, d models.Direction) bool {
	return (d == models.DirectionOutbound) == (h == HeldByPartner)
}

// Target is a sync key resolved against the partner directory.
type Target struct {
	Key      models.SyncKey
	Holder   Holder
	Partner  *models.Partner
	Material *models.Material
	Relation *models.MaterialPartnerRelation
}

// CXNumber is the CX id of the material as assigned by its supplier.
func (t *Target) CXNumber() string {
	if PartnerSupplies(t.Holder, t.Key.Direction) {
		return t.Relation.PartnerCXNumber
	}
	return t.Material.MaterialNumberCx
}

func (t *Target) allowed() bool {
	if t.Holder == HeldByUs {
		return t.Relation.Allows(t.Key.Direction.Opposite())
	}
	return t.Relation.Allows(t.Key.Direction)
}

type PartnerLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
}

type MaterialLookup interface {
	Get(ctx context.Context, ownMaterialNumber string) (*models.Material, error)
	GetRelation(ctx context.Context, ownMaterialNumber string, partnerID uuid.UUID) (*models.MaterialPartnerRelation, error)
}

// Discoverer learns a partner's CX ids for the materials shared with it.
type Discoverer interface {
	Discover(ctx context.Context, partner *models.Partner) error
}

type TargetResolver interface {
	// Resolve loads the partner, material and relation of key. With needCX the CX number
	// the data is published under must be known as well.
	Resolve(ctx context.Context, key models.SyncKey, holder Holder, needCX bool) (*Target, error)
}

// DirectoryResolver resolves targets from the repositories. When the material side does
// not resolve it runs one part-type discovery for the partner and tries again.
type DirectoryResolver struct {
	partners   PartnerLookup
	materials  MaterialLookup
	discoverer Discoverer
	logger     ectologger.Logger
}

func NewDirectoryResolver(partners PartnerLookup, materials MaterialLookup, discoverer Discoverer, logger ectologger.Logger) *DirectoryResolver {
	return &DirectoryResolver{
		partners:   partners,
		materials:  materials,
		discoverer: discoverer,
		logger:     logger,
	}
}

func (r *DirectoryResolver) Resolve(ctx context.Context, key models.SyncKey, holder Holder, needCX bool) (*Target, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryResolver.Resolve")
	defer span.End()

	partner, err := r.partners.GetByID(ctx, key.PartnerID)
	if repositories.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPartner, key.PartnerID)
	}
	if err != nil {
		return nil, err
	}

	target, err := r.resolveMaterial(ctx, key, holder, partner, needCX)
	if !errors.Is(err, ErrUnknownMaterial) || r.discoverer == nil {
		return target, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"partner_bpnl":    partner.Bpnl,
		"material_number": key.MaterialNumber,
	}).Info("Material unresolved, running part type discovery")

	if derr := r.discoverer.Discover(ctx, partner); derr != nil {
		r.logger.WithContext(ctx).WithError(derr).Warn("Part type discovery failed")
		return nil, err
	}
	return r.resolveMaterial(ctx, key, holder, partner, needCX)
}

func (r *DirectoryResolver) resolveMaterial(ctx context.Context, key models.SyncKey, holder Holder, partner *models.Partner, needCX bool) (*Target, error) {
	material, err := r.materials.Get(ctx, key.MaterialNumber)
	if repositories.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMaterial, key.MaterialNumber)
	}
	if err != nil {
		return nil, err
	}

	relation, err := r.materials.GetRelation(ctx, key.MaterialNumber, partner.ID)
	if repositories.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s is not shared with %s", ErrUnknownMaterial, key.MaterialNumber, partner.Bpnl)
	}
	if err != nil {
		return nil, err
	}

	target := &Target{Key: key, Holder: holder, Partner: partner, Material: material, Relation: relation}
	if !target.allowed() {
		return nil, fmt.Errorf("%w: %s is not exchanged %s with %s", ErrUnknownMaterial, key.MaterialNumber, key.Direction, partner.Bpnl)
	}
	if needCX && target.CXNumber() == "" {
		return nil, fmt.Errorf("%w: no CX number for %s %s", ErrUnknownMaterial, key.MaterialNumber, key.Direction)
	}
	return target, nil
}
