package parttype

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

type fakePuller struct {
	bodies map[string]string
	pulled []string
}

func (p *fakePuller) Pull(_ context.Context, _ *models.Partner, assetType models.AssetType, subPath string) ([]byte, error) {
	if assetType != models.AssetTypePartTypeInformation {
		return nil, errors.New("unexpected asset type")
	}
	p.pulled = append(p.pulled, subPath)
	body, ok := p.bodies[subPath]
	if !ok {
		return nil, errors.New("transport failed")
	}
	return []byte(body), nil
}

type fakeRelations struct {
	rels []models.MaterialPartnerRelation
	set  map[string]string
}

func (f *fakeRelations) ListRelationsByPartner(_ context.Context, _ uuid.UUID) ([]models.MaterialPartnerRelation, error) {
	return f.rels, nil
}

func (f *fakeRelations) SetPartnerCXNumber(_ context.Context, own string, _ uuid.UUID, cx string) error {
	f.set[own] = cx
	return nil
}

func TestDiscoverer_Discover(t *testing.T) {
	partner := &models.Partner{ID: uuid.New(), Bpnl: "BPNL1234567890ZZ"}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	relations := &fakeRelations{
		set: map[string]string{},
		rels: []models.MaterialPartnerRelation{
			{OwnMaterialNumber: "M1", PartnerSuppliesMaterial: true, PartnerMaterialNumber: "S-1"},
			{OwnMaterialNumber: "M2", PartnerSuppliesMaterial: true, PartnerMaterialNumber: "S-2", PartnerCXNumber: "urn:uuid:known"},
			{OwnMaterialNumber: "M3", PartnerBuysMaterial: true, PartnerMaterialNumber: "C-3"},
			{OwnMaterialNumber: "M4", PartnerSuppliesMaterial: true, PartnerMaterialNumber: "S-4"},
			{OwnMaterialNumber: "M5", PartnerSuppliesMaterial: true},
		},
	}
	puller := &fakePuller{bodies: map[string]string{
		"S-1": `{"catenaXId":"urn:uuid:s1","partTypeInformation":{"manufacturerPartId":"S-1","nameAtManufacturer":"Semiconductor"}}`,
	}}

	d := NewDiscoverer(puller, relations, logger)
	err := d.Discover(context.Background(), partner)

	require.Error(t, err, "S-4 cannot be fetched")
	assert.ElementsMatch(t, []string{"S-1", "S-4"}, puller.pulled)
	assert.Equal(t, map[string]string{"M1": "urn:uuid:s1"}, relations.set)
}

func TestDiscoverer_RejectsPayloads(t *testing.T) {
	partner := &models.Partner{ID: uuid.New()}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing id", body: `{"partTypeInformation":{"manufacturerPartId":"S-1"}}`},
		{name: "other part", body: `{"catenaXId":"urn:uuid:x","partTypeInformation":{"manufacturerPartId":"S-9"}}`},
		{name: "not json", body: `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relations := &fakeRelations{
				set:  map[string]string{},
				rels: []models.MaterialPartnerRelation{{OwnMaterialNumber: "M1", PartnerSuppliesMaterial: true, PartnerMaterialNumber: "S-1"}},
			}
			d := NewDiscoverer(&fakePuller{bodies: map[string]string{"S-1": tt.body}}, relations, logger)
			assert.Error(t, d.Discover(context.Background(), partner))
			assert.Empty(t, relations.set)
		})
	}
}

func TestDiscoverer_NothingMissing(t *testing.T) {
	puller := &fakePuller{}
	d := NewDiscoverer(puller, &fakeRelations{set: map[string]string{}}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, d.Discover(context.Background(), &models.Partner{ID: uuid.New()}))
	assert.Empty(t, puller.pulled)
}
