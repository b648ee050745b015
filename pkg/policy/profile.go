package policy

import "fmt"

// Profile names the vocabulary partners use for usage policy constraints.
type Profile struct {
	Name                    string
	LeftOperandNamespaceURI string
	ContextVersionURI       string
	PolicyName              string
}

var (
	Profile2405 = Profile{
		Name:                    "profile2405",
		LeftOperandNamespaceURI: "https://w3id.org/catenax/policy/",
		ContextVersionURI:       "https://w3id.org/tractusx/policy/v1.0.0",
		PolicyName:              "cx-policy:profile2405",
	}
	Profile2509 = Profile{
		Name:                    "profile2509",
		LeftOperandNamespaceURI: "https://w3id.org/catenax/2025/9/policy/",
		ContextVersionURI:       "https://w3id.org/catenax/2025/9/policy/context.jsonld",
		PolicyName:              "cx-policy:profile2509",
	}
)

func ProfileByName(name string) (Profile, error) {
	switch name {
	case Profile2405.Name:
		return Profile2405, nil
	case Profile2509.Name:
		return Profile2509, nil
	default:
		return Profile{}, fmt.Errorf("unknown policy profile %q", name)
	}
}

// LeftOperand returns the full IRI of a left operand in this profile.
func (p Profile) LeftOperand(name string) string {
	return p.LeftOperandNamespaceURI + name
}
