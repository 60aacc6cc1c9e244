package fxclient

import "github.com/fxtrail/fxclient/cache"

// Cache tags shared by the typed operations. Reads file themselves under
// these; writes name the subset they invalidate.
const (
	TagUser              cache.Tag = "User"
	TagUserProfile       cache.Tag = "UserProfile"
	TagCurrencies        cache.Tag = "Currencies"
	TagConversions       cache.Tag = "Conversions"
	TagConversion        cache.Tag = "Conversion"
	TagConversionSummary cache.Tag = "ConversionSummary"
	TagExchangeRate      cache.Tag = "ExchangeRate"
)
