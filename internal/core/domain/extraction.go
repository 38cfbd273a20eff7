package domain

type AmountTag string

const (
	TagRepaymentAmount       AmountTag = "repayment_amount"
	TagYourShare             AmountTag = "your_share"
	TagPreviousGlobalBalance AmountTag = "previous_global_balance"
	TagNewGlobalBalance      AmountTag = "new_global_balance"
	TagFeeAmount             AmountTag = "fee_amount"
	TagCommitmentAmount      AmountTag = "commitment_amount"
	TagAllocationAmount      AmountTag = "allocation_amount"
	TagUnknown               AmountTag = "unknown"
)

// AllowedAmountTags is the closed vocabulary an amount may be tagged with.
var AllowedAmountTags = []AmountTag{
	TagRepaymentAmount,
	TagYourShare,
	TagPreviousGlobalBalance,
	TagNewGlobalBalance,
	TagFeeAmount,
	TagCommitmentAmount,
	TagAllocationAmount,
	TagUnknown,
}

// ParseAmountTag maps free text onto the closed tag set; anything else is unknown.
func ParseAmountTag(raw string) AmountTag {
	for _, tag := range AllowedAmountTags {
		if string(tag) == raw {
			return tag
		}
	}
	return TagUnknown
}

type ExtractedAmount struct {
	Value    float64   `json:"amount"`
	Currency string    `json:"currency"`
	Tag      AmountTag `json:"tag"`
	Position int       `json:"position"`
}

type ReferenceCodes struct {
	DealName      string `json:"deal_name,omitempty"`
	DealCUSIP     string `json:"deal_cusip,omitempty"`
	FacilityCUSIP string `json:"facility_cusip,omitempty"`
	DealISIN      string `json:"deal_isin,omitempty"`
	FacilityISIN  string `json:"facility_isin,omitempty"`
}

type ExtractedFields struct {
	Amounts []ExtractedAmount `json:"amounts"`
	Dates   []string          `json:"dates"`
	Names   []string          `json:"names"`
	ReferenceCodes
}

// EmptyExtractedFields is the value used when extraction yields nothing.
func EmptyExtractedFields() ExtractedFields {
	return ExtractedFields{
		Amounts: []ExtractedAmount{},
		Dates:   []string{},
		Names:   []string{},
	}
}

type EntityLabel string

const (
	EntityOrganization EntityLabel = "ORG"
	EntityPerson       EntityLabel = "PERSON"
	EntityDate         EntityLabel = "DATE"
)

// Entity is a span reported by a named-entity recognizer.
type Entity struct {
	Text  string      `json:"text"`
	Label EntityLabel `json:"label"`
}
