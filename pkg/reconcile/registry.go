package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Reconciler is the type-erased view of an Engine.
type Reconciler interface {
	AssetType() models.AssetType
	Reconcile(ctx context.Context, key models.SyncKey) error
	Apply(ctx context.Context, key models.SyncKey, payload []byte) error
}

// Registry dispatches sync keys to the engine of their asset type.
type Registry struct {
	engines map[models.AssetType]Reconciler
}

func NewRegistry(engines ...Reconciler) *Registry {
	r := &Registry{engines: make(map[models.AssetType]Reconciler, len(engines))}
	for _, e := range engines {
		r.engines[e.AssetType()] = e
	}
	return r
}

func (r *Registry) Get(assetType models.AssetType) (Reconciler, bool) {
	e, ok := r.engines[assetType]
	return e, ok
}

func (r *Registry) AssetTypes() []models.AssetType {
	out := make([]models.AssetType, 0, len(r.engines))
	for a := range r.engines {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Reconcile(ctx context.Context, key models.SyncKey) error {
	e, ok := r.engines[key.AssetType]
	if !ok {
		return fmt.Errorf("%w: no engine for %s", ErrInvalidKey, key.AssetType)
	}
	return e.Reconcile(ctx, key)
}

type partnerByBpnl interface {
	GetByBpnl(ctx context.Context, bpnl string) (*models.Partner, error)
}

// ErpRoute stores answers of the ERP adapter through the registry's engines. Its errors
// are httperror values for the adapter's callback.
type ErpRoute struct {
	partners partnerByBpnl
	registry *Registry
	logger   ectologger.Logger
}

func NewErpRoute(partners partnerByBpnl, registry *Registry, logger ectologger.Logger) *ErpRoute {
	return &ErpRoute{partners: partners, registry: registry, logger: logger}
}

func (r *ErpRoute) ApplyErpResponse(ctx context.Context, req *models.OutgoingErpRequest, content []byte) error {
	ctx, span := tracing.StartSpan(ctx, "ErpRoute.ApplyErpResponse")
	defer span.End()

	engine, ok := r.registry.Get(req.AssetType)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusUnprocessableEntity, "responses of type %s are not stored", req.RequestType)
	}

	partner, err := r.partners.GetByBpnl(ctx, req.PartnerBpnl)
	if err != nil {
		return err
	}

	key := models.SyncKey{
		MaterialNumber: req.OwnMaterialNumber,
		PartnerID:      partner.ID,
		AssetType:      req.AssetType,
		Direction:      req.Direction,
	}
	err = engine.Apply(ctx, key, content)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInconsistentData):
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrUnknownMaterial), errors.Is(err, ErrUnknownPartner), repositories.IsNotFound(err):
		return httperror.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidKey):
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
