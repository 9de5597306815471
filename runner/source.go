package runner

import (
	"context"

	"github.com/use-agent/jobharvest/browser"
	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/snapshot"
)

// Tab is a navigated page that is released after its keyword run.
type Tab interface {
	dom.Session
	Close(keep bool)
}

// Source opens one tab per keyword.
type Source interface {
	Open(ctx context.Context, url string) (Tab, error)
}

// BrowserSource opens a fresh browser tab for every keyword.
type BrowserSource struct {
	Browser *browser.Browser
	Options browser.OpenOptions
}

func (s *BrowserSource) Open(ctx context.Context, url string) (Tab, error) {
	return s.Browser.Open(ctx, url, s.Options)
}

// SnapshotSource replays a saved page for every keyword. The page is parsed
// again on each Open so runs never see each other's mutations.
type SnapshotSource struct {
	Path string

	// URL stands in for the location of the saved page when resolving links.
	URL string
}

type snapshotTab struct {
	*snapshot.Session
}

func (snapshotTab) Close(bool) {}

func (s *SnapshotSource) Open(_ context.Context, _ string) (Tab, error) {
	sess, err := snapshot.Open(s.Path, snapshot.WithURL(s.URL))
	if err != nil {
		return nil, err
	}
	return snapshotTab{sess}, nil
}
