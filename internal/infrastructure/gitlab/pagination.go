package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	defaultPerPage = 100

	// maxPages bounds a listing so a misbehaving server cannot keep the
	// client paging forever.
	maxPages = 100
)

// collectPages fetches path page by page and returns the items of every
// page. GitLab names the following page in the X-Next-Page header and
// leaves it empty on the last one.
func collectPages[T any](ctx context.Context, client *Client, path string, query url.Values) ([]T, error) {
	query = cloneQuery(query)
	query.Set("per_page", strconv.Itoa(defaultPerPage))

	var all []T
	page := "1"
	for fetched := 0; page != ""; fetched++ {
		if fetched == maxPages {
			return nil, fmt.Errorf("gitlab: %s has more than %d pages", path, maxPages)
		}

		query.Set("page", page)
		pagePath := withQuery(path, query)
		body, header, err := client.do(ctx, http.MethodGet, pagePath, nil)
		if err != nil {
			return nil, err
		}

		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("gitlab: decoding %s: %w", pagePath, err)
		}
		all = append(all, items...)

		page = nextPage(header)
	}
	return all, nil
}

// nextPage reads the page number to fetch next, or "" on the last page.
func nextPage(header http.Header) string {
	next := header.Get("X-Next-Page")
	if _, err := strconv.Atoi(next); err != nil {
		return ""
	}
	return next
}

func cloneQuery(query url.Values) url.Values {
	clone := make(url.Values, len(query)+2)
	for key, values := range query {
		clone[key] = append([]string(nil), values...)
	}
	return clone
}
