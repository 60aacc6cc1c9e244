package fxclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fxtrail/fxclient/cache"
)

type currenciesPayload struct {
	Currencies []string `json:"currencies"`
}

type conversionPayload struct {
	Conversion Conversion `json:"conversion"`
}

type summaryPayload struct {
	Summary ConversionSummary `json:"summary"`
	Stats   ConversionSummary `json:"stats"`
}

// SupportedCurrencies returns the currency codes the converter offers.
// Silent; cached under [TagCurrencies].
func (c *Client) SupportedCurrencies(ctx context.Context, opts ...CallOption) ([]string, error) {
	env, err := c.query(ctx, callSpec{
		operation: "getSupportedCurrencies",
		method:    http.MethodGet,
		path:      "/conversions/currencies",
		cacheKey:  cache.Key("currencies"),
		provides:  []cache.Tag{TagCurrencies},
		silent:    true,
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var payload currenciesPayload
	if err := decodeData(env, "getSupportedCurrencies", &payload); err != nil {
		return nil, err
	}
	return payload.Currencies, nil
}

// Rate quotes the current exchange rate for one currency pair. Silent;
// cached per pair under an instance-scoped [TagExchangeRate].
func (c *Client) Rate(ctx context.Context, from, to string, opts ...CallOption) (*ExchangeRate, error) {
	from, to = strings.ToUpper(strings.TrimSpace(from)), strings.ToUpper(strings.TrimSpace(to))
	if len(from) != 3 || len(to) != 3 {
		return nil, &ResultError{
			Kind:      ErrInvalidRequest,
			Operation: "getExchangeRate",
			Message:   "currency codes must be three letters",
		}
	}

	env, err := c.query(ctx, callSpec{
		operation: "getExchangeRate",
		method:    http.MethodGet,
		path:      "/rates/" + from + "/" + to,
		cacheKey:  cache.Key("rate", from, to),
		provides:  []cache.Tag{TagExchangeRate.WithID(from + "-" + to)},
		silent:    true,
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var rate ExchangeRate
	if err := decodeData(env, "getExchangeRate", &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// Convert performs a conversion at the current rate and stores it in the
// account history. Invalidates the cached history and summary.
func (c *Client) Convert(ctx context.Context, req ConversionRequest, opts ...CallOption) (*Conversion, error) {
	if err := c.checkRequest("createConversion", req); err != nil {
		return nil, err
	}

	env, err := c.mutate(ctx, callSpec{
		operation:   "createConversion",
		method:      http.MethodPost,
		path:        "/conversions",
		body:        req,
		invalidates: []cache.Tag{TagConversions, TagConversionSummary},
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var payload conversionPayload
	if err := decodeData(env, "createConversion", &payload); err != nil {
		return nil, err
	}
	return &payload.Conversion, nil
}

// Conversions returns one page of the account's conversion history, cached
// under [TagConversions] per parameter combination.
func (c *Client) Conversions(ctx context.Context, params ConversionListParams, opts ...CallOption) (*ConversionList, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = 10
	}
	if params.SortBy == "" {
		params.SortBy = "createdAt"
	}
	if params.SortOrder == "" {
		params.SortOrder = "desc"
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("limit", strconv.Itoa(params.Limit))
	query.Set("sortBy", params.SortBy)
	query.Set("sortOrder", params.SortOrder)

	env, err := c.query(ctx, callSpec{
		operation: "getUserConversions",
		method:    http.MethodGet,
		path:      "/conversions",
		query:     query,
		cacheKey: cache.Key("conversions",
			strconv.Itoa(params.Page), strconv.Itoa(params.Limit), params.SortBy, params.SortOrder),
		provides: []cache.Tag{TagConversions},
		silent:   true,
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var items []Conversion
	if err := decodeData(env, "getUserConversions", &items); err != nil {
		return nil, err
	}
	return &ConversionList{Items: items, Page: page(env)}, nil
}

// RecentConversions returns the newest entries of the history.
func (c *Client) RecentConversions(ctx context.Context, limit int, opts ...CallOption) (*ConversionList, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.Conversions(ctx, ConversionListParams{Page: 1, Limit: limit}, opts...)
}

// Conversion fetches a single history entry by ID.
func (c *Client) Conversion(ctx context.Context, id string, opts ...CallOption) (*Conversion, error) {
	if id == "" {
		return nil, &ResultError{Kind: ErrInvalidRequest, Operation: "getConversion", Message: "conversion id is required"}
	}

	env, err := c.query(ctx, callSpec{
		operation: "getConversion",
		method:    http.MethodGet,
		path:      "/conversions/" + url.PathEscape(id),
		cacheKey:  cache.Key("conversion", id),
		provides:  []cache.Tag{TagConversion.WithID(id)},
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var conversion Conversion
	if err := decodeData(env, "getConversion", &conversion); err != nil {
		return nil, err
	}
	return &conversion, nil
}

// DeleteConversion removes one history entry. Every cached history page,
// the summary, and the entry itself go stale; the next read refetches.
func (c *Client) DeleteConversion(ctx context.Context, id string, opts ...CallOption) error {
	if id == "" {
		return &ResultError{Kind: ErrInvalidRequest, Operation: "deleteConversion", Message: "conversion id is required"}
	}

	_, err := c.mutate(ctx, callSpec{
		operation:      "deleteConversion",
		method:         http.MethodDelete,
		path:           "/conversions/" + url.PathEscape(id),
		invalidates:    []cache.Tag{TagConversion.WithID(id), TagConversions, TagConversionSummary},
		successMessage: "Conversion deleted successfully!",
	}, buildOptions(opts))
	return err
}

// Summary returns aggregate statistics over the account's history. Silent;
// cached under [TagConversionSummary].
func (c *Client) Summary(ctx context.Context, opts ...CallOption) (*ConversionSummary, error) {
	env, err := c.query(ctx, callSpec{
		operation: "getConversionSummary",
		method:    http.MethodGet,
		path:      "/conversions/summary",
		cacheKey:  cache.Key("conversionSummary"),
		provides:  []cache.Tag{TagConversionSummary},
		silent:    true,
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var payload summaryPayload
	if err := decodeData(env, "getConversionSummary", &payload); err != nil {
		return nil, err
	}
	// Some backend versions fill "stats", newer ones "summary".
	if payload.Summary.TotalConversions == 0 && payload.Stats.TotalConversions != 0 {
		return &payload.Stats, nil
	}
	return &payload.Summary, nil
}
