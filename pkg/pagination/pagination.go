// Package pagination walks cursor-linked API listings to completion.
package pagination

import "context"

// Page is one response of a paginated listing. Next is the link to the
// following page, empty on the last one.
type Page[T any] struct {
	Items []T
	Next  string
}

// FetchFunc retrieves the page addressed by link.
type FetchFunc[T any] func(ctx context.Context, link string) (Page[T], error)

// All fetches first and then every next link until one comes back empty,
// returning the items of all pages in order. There is no page limit: a
// server that keeps handing out next links keeps the loop going until ctx
// is cancelled. Fetch errors are returned unchanged and are not retried.
func All[T any](ctx context.Context, first string, fetch FetchFunc[T]) ([]T, error) {
	var items []T
	link := first
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, link)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.Next == "" {
			return items, nil
		}
		link = page.Next
	}
}
