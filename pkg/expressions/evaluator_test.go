package expressions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalog = `{
	"@id": "cat-1",
	"dcat:dataset": {
		"@id": "asset-1",
		"dct:type": {"@id": "https://w3id.org/catenax/taxonomy#Submodel"},
		"odrl:hasPolicy": [{"@id": "offer-1"}, {"@id": "offer-2"}]
	}
}`

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestEvaluator(t *testing.T) {
	e := NewEvaluator()
	data := decode(t, catalog)

	t.Run("single dataset is wrapped in a slice", func(t *testing.T) {
		datasets, err := e.EvaluateSlice(Field("dcat:dataset"), data)
		require.NoError(t, err)
		require.Len(t, datasets, 1)
	})

	t.Run("policy array is returned as is", func(t *testing.T) {
		policies, err := e.EvaluateSlice(Path("dcat:dataset", "odrl:hasPolicy"), data)
		require.NoError(t, err)
		assert.Len(t, policies, 2)
	})

	t.Run("string reduces @id objects", func(t *testing.T) {
		s, err := e.EvaluateString(Path("dcat:dataset", "dct:type"), data)
		require.NoError(t, err)
		assert.Equal(t, "https://w3id.org/catenax/taxonomy#Submodel", s)
	})

	t.Run("missing value is empty", func(t *testing.T) {
		s, err := e.EvaluateString(Field("dcat:service"), data)
		require.NoError(t, err)
		assert.Empty(t, s)

		items, err := e.EvaluateSlice(Field("dcat:service"), data)
		require.NoError(t, err)
		assert.Nil(t, items)
	})

	t.Run("map takes first element of an array", func(t *testing.T) {
		m, err := e.EvaluateMap(Path("dcat:dataset", "odrl:hasPolicy"), data)
		require.NoError(t, err)
		assert.Equal(t, "offer-1", m["@id"])
	})

	t.Run("invalid expression", func(t *testing.T) {
		assert.Error(t, e.Validate("dcat:dataset["))
	})
}
