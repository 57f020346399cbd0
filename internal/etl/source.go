package etl

import "context"

// ── Source ──────────────────────────────────────────────────
// Extraction is split in two collaborators so the network is not needed to
// exercise the table logic: a Fetcher returns raw markup, an Extractor turns
// markup into a RawTable. Implementations live in etl/sources/.

// Fetcher retrieves the raw document for a URL.
// Failures are reported as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// Extractor locates the data table in markup and returns its qualifying
// rows. columns names the two expected source columns.
// Layout mismatches are reported as *StructureError.
type Extractor interface {
	Extract(ctx context.Context, markup []byte, columns []string) (RawTable, error)
}
