package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/aura-webinar/relay/internal/models"
)

// PageSize is the largest page the reporting API serves.
const PageSize = 300

// Resource describes one paginated Zoom listing.
type Resource struct {
	Name         string
	PathTemplate string // one %s, replaced by the escaped webinar id
	ItemsField   string
	Query        url.Values
}

var (
	// Participants lists attendees of a past webinar.
	Participants = Resource{
		Name:         "participants",
		PathTemplate: "/report/webinars/%s/participants",
		ItemsField:   "participants",
	}
	// Registrants lists approved registrants of a webinar.
	Registrants = Resource{
		Name:         "registrants",
		PathTemplate: "/webinars/%s/registrants",
		ItemsField:   "registrants",
		Query:        url.Values{"status": {"approved"}},
	}
)

// Path returns the resource path for webinarID.
func (r Resource) Path(webinarID string) string {
	return fmt.Sprintf(r.PathTemplate, url.PathEscape(webinarID))
}

// FetchResource fetches every page of r for webinarID.
func (c *Client) FetchResource(ctx context.Context, r Resource, webinarID, accessToken string) ([]models.Record, error) {
	return c.FetchAllPages(ctx, r.Path(webinarID), r.ItemsField, r.Query, accessToken)
}

// FetchAllPages requests path until a response omits next_page_token, concatenating the items
// found under itemsField in arrival order. Any failed page aborts the fetch and nothing is returned.
func (c *Client) FetchAllPages(ctx context.Context, path, itemsField string, query url.Values, accessToken string) ([]models.Record, error) {
	var (
		all       []models.Record
		nextToken string
	)
	for page := 1; ; page++ {
		if page > c.maxPages {
			return nil, fmt.Errorf("%w: %s exceeded %d pages", ErrTooManyPages, path, c.maxPages)
		}

		q := url.Values{}
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
		q.Set("page_size", strconv.Itoa(PageSize))
		if nextToken != "" {
			q.Set("next_page_token", nextToken)
		}

		items, token, err := c.fetchPage(ctx, path, itemsField, q, accessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %v", ErrUpstreamFetch, path, page, err)
		}
		all = append(all, items...)
		c.logger.Debug("zoom page fetched",
			zap.String("path", path),
			zap.Int("page", page),
			zap.Int("items", len(items)),
		)

		if token == "" {
			return all, nil
		}
		nextToken = token
	}
}

func (c *Client) fetchPage(ctx context.Context, path, itemsField string, query url.Values, accessToken string) ([]models.Record, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	resp, err := c.Do(ctx, http.MethodGet, path, query, nil, accessToken)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(resp.Body))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &fields); err != nil {
		return nil, "", fmt.Errorf("decode page: %w", err)
	}
	var raws []json.RawMessage
	if v, ok := fields[itemsField]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &raws); err != nil {
			return nil, "", fmt.Errorf("decode %s: %w", itemsField, err)
		}
	}
	items := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := models.NewRecord(raw)
		if err != nil {
			return nil, "", fmt.Errorf("decode %s item: %w", itemsField, err)
		}
		items = append(items, rec)
	}

	var token string
	if v, ok := fields["next_page_token"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &token); err != nil {
			return nil, "", fmt.Errorf("decode next_page_token: %w", err)
		}
	}
	return items, token, nil
}
