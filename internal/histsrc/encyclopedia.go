// internal/histsrc/encyclopedia.go
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

// EncyclopediaClient talks to a MediaWiki-style API: opensearch for titles,
// then a page-extract query for the lead section and categories.
type EncyclopediaClient struct {
	baseURL string
	client  *http.Client
}

// NewEncyclopediaClient builds a client for the given api.php endpoint.
func NewEncyclopediaClient(baseURL string) *EncyclopediaClient {
	return &EncyclopediaClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *EncyclopediaClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encyclopedia api status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SearchTitles runs opensearch and returns up to limit article titles.
func (c *EncyclopediaClient) SearchTitles(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("search", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("format", "json")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	// opensearch returns [query, [titles], [descriptions], [urls]].
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode opensearch response: %w", err)
	}
	if len(raw) < 2 {
		return nil, nil
	}

	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, fmt.Errorf("decode opensearch titles: %w", err)
	}
	return titles, nil
}

// FetchArticle retrieves the lead extract and first category for a title.
func (c *EncyclopediaClient) FetchArticle(ctx context.Context, title string) (*models.HistoricalContextItem, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|categories|info")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("inprop", "url")
	params.Set("cllimit", "5")
	params.Set("titles", title)
	params.Set("format", "json")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Query struct {
			Pages map[string]struct {
				Title      string `json:"title"`
				Extract    string `json:"extract"`
				FullURL    string `json:"fullurl"`
				Categories []struct {
					Title string `json:"title"`
				} `json:"categories"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode extract response: %w", err)
	}

	for _, page := range parsed.Query.Pages {
		if page.Extract == "" {
			continue
		}
		item := &models.HistoricalContextItem{
			Title:   page.Title,
			Extract: page.Extract,
			Source:  models.SourceEncyclopedia,
			URL:     page.FullURL,
		}
		if len(page.Categories) > 0 {
			item.Category = page.Categories[0].Title
		}
		return item, nil
	}
	return nil, nil
}

// SearchArticles combines title search and extract fetch, returning up to
// limit fully populated records.
func (c *EncyclopediaClient) SearchArticles(ctx context.Context, query string, limit int) ([]models.HistoricalContextItem, error) {
	titles, err := c.SearchTitles(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	var items []models.HistoricalContextItem
	for _, title := range titles {
		if len(items) >= limit {
			break
		}
		article, err := c.FetchArticle(ctx, title)
		if err != nil || article == nil {
			continue
		}
		items = append(items, *article)
	}
	return items, nil
}
