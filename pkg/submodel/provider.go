// Package submodel serves our own data to partners that ask for it through their connector.
package submodel

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/reconcile"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/samm"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type partnerDirectory interface {
	GetByBpnl(ctx context.Context, bpnl string) (*models.Partner, error)
}

type materialDirectory interface {
	Get(ctx context.Context, ownMaterialNumber string) (*models.Material, error)
	GetByCXNumber(ctx context.Context, cx string) (*models.Material, error)
	GetRelation(ctx context.Context, ownMaterialNumber string, partnerID uuid.UUID) (*models.MaterialPartnerRelation, error)
	GetRelationByPartnerCX(ctx context.Context, partnerID uuid.UUID, cx string) (*models.MaterialPartnerRelation, error)
}

type stockLister interface {
	List(ctx context.Context, key models.SyncKey) ([]models.OwnStock, error)
}

// ErpNotifier registers partner interest with the ERP scheduler.
type ErpNotifier interface {
	Notify(ctx context.Context, key models.ErpTriggerKey) error
}

// ReconcileEnqueuer queues a reconciliation job.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, key models.SyncKey) error
}

type Config struct {
	// ReconcileOnPartnerRequest pulls the partner's counterpart data whenever it asks for ours.
	ReconcileOnPartnerRequest bool
}

func DefaultConfig() Config {
	return Config{ReconcileOnPartnerRequest: true}
}

type Provider struct {
	partners   partnerDirectory
	materials  materialDirectory
	stocks     stockLister
	discoverer reconcile.Discoverer
	erp        ErpNotifier
	jobs       ReconcileEnqueuer
	cfg        Config
	logger     ectologger.Logger
}

// NewProvider creates a Provider. discoverer, erp and jobs may be nil.
func NewProvider(
	partners partnerDirectory,
	materials materialDirectory,
	stocks stockLister,
	discoverer reconcile.Discoverer,
	erp ErpNotifier,
	jobs ReconcileEnqueuer,
	cfg Config,
	logger ectologger.Logger,
) *Provider {
	return &Provider{
		partners:   partners,
		materials:  materials,
		stocks:     stocks,
		discoverer: discoverer,
		erp:        erp,
		jobs:       jobs,
		cfg:        cfg,
		logger:     logger,
	}
}

func (p *Provider) partner(ctx context.Context, bpnl string) (*models.Partner, error) {
	partner, err := p.partners.GetByBpnl(ctx, bpnl)
	if repositories.IsNotFound(err) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "unknown partner %s", bpnl)
	}
	return partner, err
}

// ItemStock returns our stock of the material with CX id cx as the partner may see it.
// INBOUND is our stock of material the partner supplies, addressed by the partner's CX id.
// OUTBOUND is our stock of product the partner buys, addressed by our CX id.
func (p *Provider) ItemStock(ctx context.Context, partnerBpnl, cx string, direction models.Direction) (*samm.ItemStock, error) {
	ctx, span := tracing.StartSpan(ctx, "Provider.ItemStock")
	defer span.End()

	if !direction.Valid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown direction %q", direction)
	}

	partner, err := p.partner(ctx, partnerBpnl)
	if err != nil {
		return nil, err
	}

	material, err := p.resolveShared(ctx, partner, cx, direction)
	if repositories.IsNotFound(err) && p.discoverer != nil {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"partner_bpnl": partner.Bpnl,
			"cx":           cx,
		}).Info("Requested material unknown, running part type discovery")
		if derr := p.discoverer.Discover(ctx, partner); derr != nil {
			p.logger.WithContext(ctx).WithError(derr).Warn("Part type discovery failed")
		}
		material, err = p.resolveShared(ctx, partner, cx, direction)
	}
	if err != nil {
		return nil, err
	}

	key := models.SyncKey{
		MaterialNumber: material.OwnMaterialNumber,
		PartnerID:      partner.ID,
		AssetType:      models.AssetTypeItemStock,
		Direction:      direction,
	}
	stocks, err := p.stocks.List(ctx, key)
	if err != nil {
		return nil, err
	}

	p.afterRequest(ctx, partner, key)
	return samm.ItemStockFromOwnStock(cx, direction, stocks), nil
}

// resolveShared finds our material behind cx and checks that the partner may see it in
// direction.
func (p *Provider) resolveShared(ctx context.Context, partner *models.Partner, cx string, direction models.Direction) (*models.Material, error) {
	notShared := func() error {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "material %s is not shared %s with %s", cx, direction, partner.Bpnl)
	}

	if reconcile.PartnerSupplies(reconcile.HeldByUs, direction) {
		rel, err := p.materials.GetRelationByPartnerCX(ctx, partner.ID, cx)
		if err != nil {
			return nil, err
		}
		if !rel.PartnerSuppliesMaterial {
			return nil, notShared()
		}
		return p.materials.Get(ctx, rel.OwnMaterialNumber)
	}

	material, err := p.materials.GetByCXNumber(ctx, cx)
	if err != nil {
		return nil, err
	}
	rel, err := p.materials.GetRelation(ctx, material.OwnMaterialNumber, partner.ID)
	if err != nil {
		return nil, err
	}
	if !rel.PartnerBuysMaterial {
		return nil, notShared()
	}
	return material, nil
}

// afterRequest keeps our ERP data fresh for the partner and pulls the partner's side of
// the same material. Failures are logged only.
func (p *Provider) afterRequest(ctx context.Context, partner *models.Partner, key models.SyncKey) {
	logger := p.logger.WithContext(ctx).WithField("sync_key", key.String())

	if p.erp != nil {
		err := p.erp.Notify(ctx, models.ErpTriggerKey{
			PartnerBpnl:       partner.Bpnl,
			OwnMaterialNumber: key.MaterialNumber,
			AssetType:         key.AssetType,
			Direction:         key.Direction,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to notify ERP scheduler")
		}
	}

	if p.cfg.ReconcileOnPartnerRequest && p.jobs != nil {
		counterpart := key
		counterpart.Direction = key.Direction.Opposite()
		if err := p.jobs.EnqueueReconcile(ctx, counterpart); err != nil {
			logger.WithError(err).Warn("Failed to enqueue reconciliation")
		}
	}
}

// PartTypeInformation returns the CX id of one of our products bought by the partner.
func (p *Provider) PartTypeInformation(ctx context.Context, partnerBpnl, ownMaterialNumber string) (*samm.PartTypeInformation, error) {
	ctx, span := tracing.StartSpan(ctx, "Provider.PartTypeInformation")
	defer span.End()

	partner, err := p.partner(ctx, partnerBpnl)
	if err != nil {
		return nil, err
	}
	material, err := p.materials.Get(ctx, ownMaterialNumber)
	if err != nil {
		return nil, err
	}
	rel, err := p.materials.GetRelation(ctx, ownMaterialNumber, partner.ID)
	if err != nil {
		return nil, err
	}
	if !rel.PartnerBuysMaterial || material.MaterialNumberCx == "" {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no part type information for %s", ownMaterialNumber)
	}
	return samm.PartTypeFor(material), nil
}
