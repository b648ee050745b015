package models

import (
	"time"
)

type NegotiationState string

const (
	NegotiationIdle                NegotiationState = "IDLE"
	NegotiationCatalogFetched      NegotiationState = "CATALOG_FETCHED"
	NegotiationOfferSelected       NegotiationState = "OFFER_SELECTED"
	NegotiationContractNegotiating NegotiationState = "CONTRACT_NEGOTIATING"
	NegotiationContractConfirmed   NegotiationState = "CONTRACT_CONFIRMED"
	NegotiationTransferInitiated   NegotiationState = "TRANSFER_INITIATED"
	NegotiationAuthorized          NegotiationState = "AUTHORIZED"
	NegotiationFailed              NegotiationState = "FAILED"
)

// PendingNegotiation is the in-memory record of one in-flight negotiation.
type PendingNegotiation struct {
	ID                  string           `json:"id"`
	PartnerBpnl         string           `json:"partner_bpnl"`
	AssetType           AssetType        `json:"asset_type"`
	State               NegotiationState `json:"state"`
	AssetID             string           `json:"asset_id,omitempty"`
	NegotiationID       string           `json:"negotiation_id,omitempty"`
	ContractAgreementID string           `json:"contract_agreement_id,omitempty"`
	TransferProcessID   string           `json:"transfer_process_id,omitempty"`
	StartedAt           time.Time        `json:"started_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}
