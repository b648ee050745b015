package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
)

func TestAssetType(t *testing.T) {
	for _, a := range AssetTypes {
		assert.NotEmpty(t, a.SemanticID(), a)
		assert.NotEmpty(t, a.ErpRequestType(), a)

		back, ok := AssetTypeForErpRequestType(a.ErpRequestType())
		require.True(t, ok)
		assert.Equal(t, a, back)
	}

	a, err := ParseAssetType(" item_stock_submodel ")
	require.NoError(t, err)
	assert.Equal(t, AssetTypeItemStock, a)

	_, err = ParseAssetType("STOCK")
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("outbound")
	require.NoError(t, err)
	assert.Equal(t, DirectionOutbound, d)

	_, err = ParseDirection("SIDEWAYS")
	assert.Error(t, err)
}

func TestRelationAllows(t *testing.T) {
	supplier := MaterialPartnerRelation{PartnerSuppliesMaterial: true}
	customer := MaterialPartnerRelation{PartnerBuysMaterial: true}

	assert.True(t, supplier.Allows(DirectionOutbound))
	assert.False(t, supplier.Allows(DirectionInbound))
	assert.True(t, customer.Allows(DirectionInbound))
	assert.False(t, customer.Allows(DirectionOutbound))
	assert.Equal(t, DirectionOutbound, DirectionInbound.Opposite())
	assert.Equal(t, DirectionInbound, DirectionOutbound.Opposite())
}

func TestPartnerOwnsSite(t *testing.T) {
	p := Partner{}
	assert.True(t, p.OwnsSite("BPNS000000000001"), "no sites configured")

	p.Sites = database.NewJSONB([]Site{{Bpns: "BPNS000000000001"}})
	assert.True(t, p.OwnsSite("BPNS000000000001"))
	assert.False(t, p.OwnsSite("BPNS000000000002"))
}

func TestSyncKey(t *testing.T) {
	id := uuid.MustParse("6a8f2d1c-3b4e-4f5a-9b8c-7d6e5f4a3b2c")
	key := SyncKey{MaterialNumber: "MNR-1", PartnerID: id, AssetType: AssetTypeDemand, Direction: DirectionInbound}

	assert.NoError(t, key.Validate())
	assert.Equal(t, "DEMAND_SUBMODEL|6a8f2d1c-3b4e-4f5a-9b8c-7d6e5f4a3b2c|MNR-1|INBOUND", key.String())

	key.Direction = ""
	assert.Error(t, key.Validate())
}
