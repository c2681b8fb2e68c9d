package money

// Symbol identifies a market as a pair of currencies. Base is the quote
// currency that prices are denominated in; Target is the traded asset.
// Symbols are comparable and safe to use as map keys.
type Symbol struct {
	Base   Currency
	Target Currency
}

// UsdBtc is the USD-quoted bitcoin market.
var UsdBtc = NewSymbol(USD, BTC)

// NewSymbol creates a Symbol from a quote currency and a traded asset.
func NewSymbol(base, target Currency) Symbol {
	return Symbol{Base: base, Target: target}
}

func (s Symbol) String() string { return s.Base.code + s.Target.code }
