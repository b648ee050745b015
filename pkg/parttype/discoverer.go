// Package parttype learns the Catena-X ids of supplied materials from the suppliers'
// PartTypeInformation submodels.
package parttype

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/samm"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var ErrNoCatenaXID = errors.New("part type information carries no catenaXId")

type puller interface {
	Pull(ctx context.Context, partner *models.Partner, assetType models.AssetType, subPath string) ([]byte, error)
}

type relationStore interface {
	ListRelationsByPartner(ctx context.Context, partnerID uuid.UUID) ([]models.MaterialPartnerRelation, error)
	SetPartnerCXNumber(ctx context.Context, ownMaterialNumber string, partnerID uuid.UUID, cx string) error
}

// Discoverer fills in missing partner CX numbers.
type Discoverer struct {
	puller    puller
	relations relationStore
	logger    ectologger.Logger
}

func NewDiscoverer(p puller, relations relationStore, logger ectologger.Logger) *Discoverer {
	return &Discoverer{puller: p, relations: relations, logger: logger}
}

// Discover pulls the PartTypeInformation of every material the partner supplies to us
// whose CX number is still unknown. A failure for one material does not stop the others;
// the first one is returned.
func (d *Discoverer) Discover(ctx context.Context, partner *models.Partner) error {
	ctx, span := tracing.StartSpan(ctx, "Discoverer.Discover")
	defer span.End()

	logger := d.logger.WithContext(ctx).WithField("partner_bpnl", partner.Bpnl)

	relations, err := d.relations.ListRelationsByPartner(ctx, partner.ID)
	if err != nil {
		return err
	}
	missing := ectolinq.Filter(relations, func(r models.MaterialPartnerRelation) bool {
		return r.PartnerSuppliesMaterial && r.PartnerCXNumber == "" && r.PartnerMaterialNumber != ""
	})
	if len(missing) == 0 {
		logger.Debug("No part types to discover")
		return nil
	}

	var firstErr error
	found := 0
	for _, rel := range missing {
		cx, err := d.discoverOne(ctx, partner, &rel)
		if err != nil {
			logger.WithError(err).WithField("material_number", rel.OwnMaterialNumber).Warn("Part type discovery failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := d.relations.SetPartnerCXNumber(ctx, rel.OwnMaterialNumber, partner.ID, cx); err != nil {
			return err
		}
		found++
	}

	logger.Infof("Discovered %d of %d part types", found, len(missing))
	return firstErr
}

func (d *Discoverer) discoverOne(ctx context.Context, partner *models.Partner, rel *models.MaterialPartnerRelation) (string, error) {
	body, err := d.puller.Pull(ctx, partner, models.AssetTypePartTypeInformation, rel.PartnerMaterialNumber)
	if err != nil {
		return "", err
	}
	info, err := samm.Decode[samm.PartTypeInformation](body)
	if err != nil {
		return "", err
	}
	if info.CatenaXID == "" {
		return "", fmt.Errorf("%w: %s", ErrNoCatenaXID, rel.PartnerMaterialNumber)
	}
	if got := info.PartTypeInformation.ManufacturerPartID; got != "" && got != rel.PartnerMaterialNumber {
		return "", fmt.Errorf("%w: manufacturerPartId %s does not match %s", samm.ErrMalformed, got, rel.PartnerMaterialNumber)
	}
	return info.CatenaXID, nil
}
