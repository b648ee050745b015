package reconcile

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Source fetches a partner's submodel for a target.
type Source interface {
	Fetch(ctx context.Context, target *Target, assetType models.AssetType, subPath string) ([]byte, error)
}

type puller interface {
	Pull(ctx context.Context, partner *models.Partner, assetType models.AssetType, subPath string) ([]byte, error)
}

// DataspaceSource fetches through the partner's connector.
type DataspaceSource struct {
	puller puller
}

func NewDataspaceSource(p puller) *DataspaceSource {
	return &DataspaceSource{puller: p}
}

func (s *DataspaceSource) Fetch(ctx context.Context, target *Target, assetType models.AssetType, subPath string) ([]byte, error) {
	return s.puller.Pull(ctx, target.Partner, assetType, subPath)
}
