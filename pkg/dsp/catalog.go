package dsp

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/expressions"
)

// Dataset is one catalog entry with the offers it is available under.
type Dataset struct {
	AssetID    string
	SemanticID string
	Offers     []map[string]any
}

var (
	datasetKeys    = []string{"dcat:dataset", DcatNamespace + "dataset", "dataset"}
	policyKeys     = []string{"odrl:hasPolicy", OdrlNamespace + "hasPolicy", "hasPolicy"}
	semanticIDKeys = []string{"aas-semantics:semanticId", AasSemanticsNS + "semanticId", "semanticId"}
)

// ParseDatasets extracts datasets and their offers. Compacted JSON-LD turns single
// element arrays into objects, so both shapes are accepted at every level.
func ParseDatasets(eval *expressions.Evaluator, catalog map[string]any) ([]Dataset, error) {
	if catalog == nil {
		return nil, fmt.Errorf("empty catalog")
	}

	raw, err := firstSlice(eval, catalog, datasetKeys)
	if err != nil {
		return nil, err
	}

	datasets := make([]Dataset, 0, len(raw))
	for _, item := range raw {
		node, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dataset is %T, not an object", item)
		}

		assetID, err := eval.EvaluateString(expressions.Field("@id"), node)
		if err != nil {
			return nil, err
		}
		semanticID, err := firstString(eval, node, semanticIDKeys)
		if err != nil {
			return nil, err
		}
		policies, err := firstSlice(eval, node, policyKeys)
		if err != nil {
			return nil, err
		}

		ds := Dataset{AssetID: assetID, SemanticID: semanticID}
		for _, p := range policies {
			if offer, ok := p.(map[string]any); ok {
				ds.Offers = append(ds.Offers, offer)
			}
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

func firstSlice(eval *expressions.Evaluator, node map[string]any, keys []string) ([]any, error) {
	for _, key := range keys {
		items, err := eval.EvaluateSlice(expressions.Field(key), node)
		if err != nil {
			return nil, err
		}
		if items != nil {
			return items, nil
		}
	}
	return nil, nil
}

func firstString(eval *expressions.Evaluator, node map[string]any, keys []string) (string, error) {
	for _, key := range keys {
		s, err := eval.EvaluateString(expressions.Field(key), node)
		if err != nil {
			return "", err
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}
