package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuantityUnit is the unit a movement's waste quantity is expressed in.
type QuantityUnit string

const (
	UnitTonnes      QuantityUnit = "Tonnes"
	UnitKilograms   QuantityUnit = "Kilograms"
	UnitLitres      QuantityUnit = "Litres"
	UnitCubicMetres QuantityUnit = "Cubic Metres"
)

// MovementRecord is one fully validated and normalized row from an uploaded
// file. Values are trimmed, codes upper-cased, and the quantity parsed into
// an exact decimal.
type MovementRecord struct {
	Reference      string          `json:"reference"`
	WasteCode      string          `json:"wasteCode"`
	EWCCodes       []string        `json:"ewcCodes"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           QuantityUnit    `json:"unit"`
	CollectionDate time.Time       `json:"collectionDate"`
}

// PageMetadata is one continuation cursor in a paged listing.
type PageMetadata struct {
	PageNumber int    `json:"pageNumber"`
	Token      string `json:"token"`
}

// PagedSubmissions is a single page of a batch's submission references.
type PagedSubmissions struct {
	TotalRecords int             `json:"totalRecords"`
	TotalPages   int             `json:"totalPages"`
	CurrentPage  int             `json:"currentPage"`
	Pages        []PageMetadata  `json:"pages"`
	Values       []SubmissionRef `json:"values"`
}
