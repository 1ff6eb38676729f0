package client

import (
	"context"
	"net/url"
)

// PaginatedResponse is the list envelope returned by the server.
type PaginatedResponse struct {
	Data          []any  `json:"data"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// FetchAllPages follows next_page_token until the last page. baseQuery is
// not modified.
func FetchAllPages(ctx context.Context, c *Client, method, path string, baseQuery url.Values) ([]any, error) {
	var all []any
	token := ""
	for {
		q := url.Values{}
		for k, v := range baseQuery {
			q[k] = append([]string(nil), v...)
		}
		if token != "" {
			q.Set("page_token", token)
		}
		resp, err := c.Do(ctx, method, path, q, nil)
		if err != nil {
			return nil, err
		}
		var page PaginatedResponse
		if err := DecodeJSON(resp, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if page.NextPageToken == "" {
			return all, nil
		}
		token = page.NextPageToken
	}
}
