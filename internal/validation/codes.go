package validation

// Canonical column references. These are the stable keys used in column
// error views and expected (case and punctuation insensitive) in upload
// headers.
const (
	ColumnReference      = "reference"
	ColumnWasteCode      = "wasteCode"
	ColumnEWCCodes       = "ewcCodes"
	ColumnDescription    = "description"
	ColumnQuantity       = "quantity"
	ColumnUnit           = "unit"
	ColumnCollectionDate = "collectionDate"
)

// ColumnRefs lists every required column in declaration order. Row error
// details follow this order, so assembly output is deterministic.
var ColumnRefs = []string{
	ColumnReference,
	ColumnWasteCode,
	ColumnEWCCodes,
	ColumnDescription,
	ColumnQuantity,
	ColumnUnit,
	ColumnCollectionDate,
}

// Basel Annex IX and OECD codes accepted for green-list movements.
var wasteCodes = map[string]struct{}{
	"B1010": {}, "B1020": {}, "B1030": {}, "B1031": {}, "B1040": {},
	"B1050": {}, "B1070": {}, "B1090": {}, "B1100": {}, "B1115": {},
	"B2010": {}, "B2020": {}, "B2030": {}, "B2040": {}, "B2060": {},
	"B3011": {}, "B3020": {}, "B3026": {}, "B3027": {}, "B3030": {},
	"B3035": {}, "B3040": {}, "B3050": {}, "B3060": {}, "B3065": {},
	"GB040": {}, "GC010": {}, "GC020": {}, "GC030": {}, "GC050": {},
	"GE020": {}, "GF010": {}, "GG030": {}, "GG040": {}, "GN010": {},
	"GN020": {}, "GN030": {},
}

// European Waste Catalogue codes accepted on uploads.
var ewcCodes = map[string]struct{}{
	"010101": {}, "010102": {}, "010304": {}, "010306": {}, "010408": {},
	"010409": {}, "020101": {}, "020102": {}, "020103": {}, "020110": {},
	"030101": {}, "030105": {}, "030301": {}, "030307": {}, "030308": {},
	"040109": {}, "040209": {}, "040221": {}, "040222": {}, "070213": {},
	"101103": {}, "101112": {}, "120101": {}, "120102": {}, "120103": {},
	"120104": {}, "150101": {}, "150102": {}, "150103": {}, "150104": {},
	"150105": {}, "150106": {}, "150107": {}, "160103": {}, "160117": {},
	"160118": {}, "160119": {}, "160120": {}, "170101": {}, "170102": {},
	"170201": {}, "170202": {}, "170203": {}, "170401": {}, "170402": {},
	"170405": {}, "170411": {}, "191201": {}, "191202": {}, "191203": {},
	"191204": {}, "191205": {}, "191207": {}, "200101": {}, "200102": {},
	"200139": {}, "200140": {},
}

// IsWasteCode reports whether code is on the accepted Basel/OECD list.
func IsWasteCode(code string) bool {
	_, ok := wasteCodes[code]
	return ok
}

// IsEWCCode reports whether code is on the accepted EWC list.
func IsEWCCode(code string) bool {
	_, ok := ewcCodes[code]
	return ok
}
