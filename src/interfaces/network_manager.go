package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for outbound HTTP.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request with bounded retries and returns the body.
	Get(ctx context.Context, url string, params map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// Do performs a single request without retries and returns the status code
	// and body whatever the status.
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error)
}
