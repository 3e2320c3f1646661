package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/notion-cal/app/cfg"
	"github.com/lysyi3m/notion-cal/app/notion"
)

const (
	MaxPageSize     = 100
	MaxPageRequests = 200
)

// PagedSource is one way of addressing a Notion collection.
type PagedSource interface {
	Kind() string
	Query(ctx context.Context, collectionID string, req notion.QueryRequest) (*notion.QueryResult, error)
}

// SourceFactory returns the sources to try for a credential, in fallback order.
type SourceFactory func(token string) []PagedSource

// NotionSources tries the database endpoint first and the data source
// endpoint second.
func NotionSources(client *notion.Client) SourceFactory {
	return func(token string) []PagedSource {
		return []PagedSource{
			notion.NewDatabaseSource(client, token),
			notion.NewDataSourceSource(client, token),
		}
	}
}

type Paginator struct {
	maxItems int
}

func NewPaginator(maxItems int) *Paginator {
	return &Paginator{maxItems: cfg.ClampMaxSyncItems(maxItems)}
}

func (p *Paginator) MaxItems() int {
	return p.maxItems
}

// Collect pulls pages whose dateProperty is set, oldest first, until the
// item budget is spent, the source runs dry or MaxPageRequests is reached.
// A later source is tried only when an earlier one rejects the first page.
func (p *Paginator) Collect(ctx context.Context, sources []PagedSource, collectionID, dateProperty string) ([]notion.Page, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no query sources configured")
	}

	var errs []error
	for i, source := range sources {
		pages, started, err := p.collectFrom(ctx, source, collectionID, dateProperty)
		if err == nil {
			return pages, nil
		}

		// Only a rejected first page moves on to the next source.
		if started || !notion.IsRejection(err) {
			return nil, err
		}

		errs = append(errs, fmt.Errorf("%s query: %w", source.Kind(), err))

		if i+1 < len(sources) {
			slog.Debug("Query rejected, trying next source", "kind", source.Kind(), "collection", collectionID, "error", err)
		}
	}

	if len(errs) == 1 {
		return nil, errors.Unwrap(errs[0])
	}

	return nil, fmt.Errorf("%w: %w", ErrQueryRejected, errors.Join(errs...))
}

func (p *Paginator) collectFrom(ctx context.Context, source PagedSource, collectionID, dateProperty string) ([]notion.Page, bool, error) {
	var pages []notion.Page
	var cursor string

	for request := 0; request < MaxPageRequests && len(pages) < p.maxItems; request++ {
		req := notion.QueryRequest{
			Filter: &notion.Filter{
				Property: dateProperty,
				Date:     &notion.DateFilter{IsNotEmpty: true},
			},
			Sorts:       []notion.Sort{{Property: dateProperty, Direction: "ascending"}},
			PageSize:    min(MaxPageSize, p.maxItems-len(pages)),
			StartCursor: cursor,
		}

		result, err := source.Query(ctx, collectionID, req)
		if err != nil {
			return nil, request > 0, err
		}

		remaining := p.maxItems - len(pages)
		if len(result.Results) > remaining {
			result.Results = result.Results[:remaining]
		}
		pages = append(pages, result.Results...)

		if !result.HasMore || result.NextCursor == nil || *result.NextCursor == "" {
			break
		}
		cursor = *result.NextCursor
	}

	slog.Debug("Collected pages", "kind", source.Kind(), "collection", collectionID, "pages", len(pages))

	return pages, true, nil
}
