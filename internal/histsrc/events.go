// internal/histsrc/events.go
package histsrc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/models"
)

// EventsClient queries a historical-events search endpoint. Date bounds are
// passed as YYYYMMDD.
type EventsClient struct {
	baseURL string
	lang    string
	client  *http.Client
}

// NewEventsClient builds a client for the events search API.
func NewEventsClient(baseURL string) *EventsClient {
	return &EventsClient{
		baseURL: baseURL,
		lang:    "ru",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type eventRecord struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Category    string `json:"category"`
}

// Search fetches events matching query. Zero beginYear/endYear leaves the
// range unbounded.
func (c *EventsClient) Search(ctx context.Context, query string, beginYear, endYear, limit int) ([]models.HistoricalContextItem, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("lang", c.lang)
	if beginYear > 0 {
		params.Set("begin_date", fmt.Sprintf("%04d0101", beginYear))
	}
	if endYear > 0 {
		params.Set("end_date", fmt.Sprintf("%04d1231", endYear))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Events []eventRecord `json:"events"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	var items []models.HistoricalContextItem
	for _, ev := range parsed.Events {
		if ev.Title == "" && ev.Description == "" {
			continue
		}
		items = append(items, models.HistoricalContextItem{
			Title:    ev.Title,
			Extract:  ev.Description,
			Source:   models.SourceEventsAPI,
			URL:      ev.URL,
			Date:     ev.Date,
			Category: ev.Category,
		})
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}
