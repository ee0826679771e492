package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// MaxLibrarySize caps the downloaded script.
const MaxLibrarySize = 16 << 20

func newDownloadClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil // Disable logging
	return client
}

// fetchLibrary downloads url, retrying connection errors and 5xx responses.
func fetchLibrary(ctx context.Context, client *retryablehttp.Client, url string) ([]byte, error) {
	if client == nil {
		client = newDownloadClient()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	req.Header.Set("Accept", "application/javascript, text/javascript, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrDownload, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxLibrarySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrDownload, err)
	}
	if len(data) > MaxLibrarySize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrDownload, MaxLibrarySize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrDownload)
	}
	return data, nil
}
