package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	frameworkAgreement = "DataExchangeGovernance:1.0"
	usagePurpose       = "cx.puris.base:1"
)

func constraint(left, operator, right string) map[string]any {
	return map[string]any{
		"odrl:leftOperand":  map[string]any{"@id": left},
		"odrl:operator":     map[string]any{"@id": operator},
		"odrl:rightOperand": right,
	}
}

func offer(constraints ...map[string]any) map[string]any {
	and := make([]any, len(constraints))
	for i, c := range constraints {
		and[i] = c
	}
	return map[string]any{
		"@id":              "offer-1",
		"@type":            "odrl:Offer",
		"odrl:prohibition": []any{},
		"odrl:obligation":  []any{},
		"odrl:permission": map[string]any{
			"odrl:action": map[string]any{"@id": "odrl:use"},
			"odrl:constraint": map[string]any{
				"odrl:and": and,
			},
		},
	}
}

func validOffer() map[string]any {
	return offer(
		constraint("cx-policy:FrameworkAgreement", "odrl:eq", frameworkAgreement),
		constraint("cx-policy:UsagePurpose", "odrl:eq", usagePurpose),
	)
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(Profile2405, frameworkAgreement, usagePurpose)

	tests := []struct {
		name  string
		offer func() map[string]any
		want  bool
	}{
		{
			name:  "exactly two expected constraints",
			offer: validOffer,
			want:  true,
		},
		{
			name: "constraints in reverse order with full IRIs",
			offer: func() map[string]any {
				return offer(
					constraint("https://w3id.org/catenax/policy/UsagePurpose", "http://www.w3.org/ns/odrl/2/eq", usagePurpose),
					constraint("https://w3id.org/catenax/policy/FrameworkAgreement", "odrl:eq", frameworkAgreement),
				)
			},
			want: true,
		},
		{
			name: "absent prohibition and obligation",
			offer: func() map[string]any {
				o := validOffer()
				delete(o, "odrl:prohibition")
				delete(o, "odrl:obligation")
				return o
			},
			want: true,
		},
		{
			name: "single unconjoined constraint",
			offer: func() map[string]any {
				o := validOffer()
				o["odrl:permission"] = map[string]any{
					"odrl:constraint": constraint("cx-policy:FrameworkAgreement", "odrl:eq", frameworkAgreement),
				}
				return o
			},
			want: false,
		},
		{
			name: "only one constraint inside and",
			offer: func() map[string]any {
				return offer(constraint("cx-policy:FrameworkAgreement", "odrl:eq", frameworkAgreement))
			},
			want: false,
		},
		{
			name: "three constraints",
			offer: func() map[string]any {
				return offer(
					constraint("cx-policy:FrameworkAgreement", "odrl:eq", frameworkAgreement),
					constraint("cx-policy:UsagePurpose", "odrl:eq", usagePurpose),
					constraint("cx-policy:Membership", "odrl:eq", "active"),
				)
			},
			want: false,
		},
		{
			name: "duplicated left operand",
			offer: func() map[string]any {
				return offer(
					constraint("cx-policy:FrameworkAgreement", "odrl:eq", frameworkAgreement),
					constraint("cx-policy:FrameworkAgreement", "odrl:eq", frameworkAgreement),
				)
			},
			want: false,
		},
		{
			name: "wrong right operand",
			offer: func() map[string]any {
				return offer(
					constraint("cx-policy:FrameworkAgreement", "odrl:eq", frameworkAgreement),
					constraint("cx-policy:UsagePurpose", "odrl:eq", "cx.core.qualityNotification:1"),
				)
			},
			want: false,
		},
		{
			name: "wrong operator",
			offer: func() map[string]any {
				return offer(
					constraint("cx-policy:FrameworkAgreement", "odrl:isAnyOf", frameworkAgreement),
					constraint("cx-policy:UsagePurpose", "odrl:eq", usagePurpose),
				)
			},
			want: false,
		},
		{
			name: "left operand from other profile namespace",
			offer: func() map[string]any {
				return offer(
					constraint("https://w3id.org/catenax/2025/9/policy/FrameworkAgreement", "odrl:eq", frameworkAgreement),
					constraint("cx-policy:UsagePurpose", "odrl:eq", usagePurpose),
				)
			},
			want: false,
		},
		{
			name: "non empty prohibition",
			offer: func() map[string]any {
				o := validOffer()
				o["odrl:prohibition"] = []any{map[string]any{"odrl:action": "odrl:use"}}
				return o
			},
			want: false,
		},
		{
			name: "non empty obligation",
			offer: func() map[string]any {
				o := validOffer()
				o["odrl:obligation"] = map[string]any{"odrl:action": "odrl:delete"}
				return o
			},
			want: false,
		},
		{
			name: "two permissions",
			offer: func() map[string]any {
				o := validOffer()
				p := o["odrl:permission"]
				o["odrl:permission"] = []any{p, p}
				return o
			},
			want: false,
		},
		{
			name:  "nil offer",
			offer: func() map[string]any { return nil },
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Validate(tt.offer()))
		})
	}
}

func TestValidator_ExpandedJSONLD(t *testing.T) {
	raw := `{
		"http://www.w3.org/ns/odrl/2/permission": [{
			"http://www.w3.org/ns/odrl/2/action": [{"@id": "http://www.w3.org/ns/odrl/2/use"}],
			"http://www.w3.org/ns/odrl/2/constraint": [{
				"http://www.w3.org/ns/odrl/2/and": [
					{
						"http://www.w3.org/ns/odrl/2/leftOperand": [{"@id": "https://w3id.org/catenax/2025/9/policy/FrameworkAgreement"}],
						"http://www.w3.org/ns/odrl/2/operator": [{"@id": "http://www.w3.org/ns/odrl/2/eq"}],
						"http://www.w3.org/ns/odrl/2/rightOperand": [{"@value": "DataExchangeGovernance:1.0"}]
					},
					{
						"http://www.w3.org/ns/odrl/2/leftOperand": [{"@id": "https://w3id.org/catenax/2025/9/policy/UsagePurpose"}],
						"http://www.w3.org/ns/odrl/2/operator": [{"@id": "http://www.w3.org/ns/odrl/2/eq"}],
						"http://www.w3.org/ns/odrl/2/rightOperand": [{"@value": "cx.puris.base:1"}]
					}
				]
			}]
		}],
		"http://www.w3.org/ns/odrl/2/prohibition": [],
		"http://www.w3.org/ns/odrl/2/obligation": []
	}`

	var node map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &node))

	assert.True(t, NewValidator(Profile2509, frameworkAgreement, usagePurpose).Validate(node))
	assert.False(t, NewValidator(Profile2405, frameworkAgreement, usagePurpose).Validate(node))
}

func TestProfileByName(t *testing.T) {
	p, err := ProfileByName("profile2509")
	require.NoError(t, err)
	assert.Equal(t, "https://w3id.org/catenax/2025/9/policy/UsagePurpose", p.LeftOperand(UsagePurpose))

	_, err = ProfileByName("profile2023")
	assert.Error(t, err)
}
