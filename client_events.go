package fxclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fxtrail/fxclient/cache"
)

type eventStatsPayload struct {
	Stats []EventStat `json:"stats"`
}

// Events returns one page of the account's audit trail, optionally filtered
// by event type and date range. Silent; cached per filter combination.
func (c *Client) Events(ctx context.Context, params EventListParams, opts ...CallOption) (*EventList, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("limit", strconv.Itoa(params.Limit))
	if params.EventType != "" && params.EventType != EventTypeAll {
		query.Set("eventType", params.EventType)
	}
	if params.StartDate != "" {
		query.Set("startDate", params.StartDate)
	}
	if params.EndDate != "" {
		query.Set("endDate", params.EndDate)
	}

	env, err := c.query(ctx, callSpec{
		operation: "getUserEvents",
		method:    http.MethodGet,
		path:      "/events",
		query:     query,
		cacheKey:  cache.Key("events", query.Encode()),
		provides:  []cache.Tag{TagUser},
		silent:    true,
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var items []Event
	if err := decodeData(env, "getUserEvents", &items); err != nil {
		return nil, err
	}
	return &EventList{Items: items, Page: page(env)}, nil
}

// EventStats returns per-type occurrence counts over the audit trail.
func (c *Client) EventStats(ctx context.Context, opts ...CallOption) ([]EventStat, error) {
	env, err := c.query(ctx, callSpec{
		operation: "getEventStats",
		method:    http.MethodGet,
		path:      "/events/stats",
		cacheKey:  cache.Key("eventStats"),
		provides:  []cache.Tag{TagUser},
		silent:    true,
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var payload eventStatsPayload
	if err := decodeData(env, "getEventStats", &payload); err != nil {
		return nil, err
	}
	return payload.Stats, nil
}

// RecentEvents returns the newest audit entries.
func (c *Client) RecentEvents(ctx context.Context, limit int, opts ...CallOption) (*EventList, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.Events(ctx, EventListParams{Page: 1, Limit: limit}, opts...)
}
