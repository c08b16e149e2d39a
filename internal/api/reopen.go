package api

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/content-studio/internal/types"
)

// FetchRun fetches the status snapshot and player URLs of a run concurrently.
// URLs are nil when the service has none for the run yet.
func (c *Client) FetchRun(ctx context.Context, runID string) (*types.StatusSnapshot, *types.PlayerURLs, error) {
	var snap *types.StatusSnapshot
	var urls *types.PlayerURLs

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.FetchStatus(gCtx, runID)
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	g.Go(func() error {
		u, err := c.FetchURLs(gCtx, runID)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code == http.StatusNotFound {
				return nil
			}
			return err
		}
		urls = u
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return snap, urls, nil
}
