package datasource

import (
	"context"
	"fmt"

	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/models"

	"github.com/bytedance/sonic"
)

const DefaultScripMasterURL = "https://margincalculator.angelbroking.com/OpenAPI_File/files/OpenAPIScripMaster.json"

// HTTPScripSource downloads the public OpenAPI scrip master file.
type HTTPScripSource struct {
	URL     string
	Network interfaces.INetworkManager
}

// -----------------------------------------------------------------------------

func NewHTTPScripSource(url string, netMgr interfaces.INetworkManager) *HTTPScripSource {
	if url == "" {
		url = DefaultScripMasterURL
	}
	return &HTTPScripSource{URL: url, Network: netMgr}
}

// -----------------------------------------------------------------------------

func (s *HTTPScripSource) Fetch(ctx context.Context) ([]models.MInstrumentRecord, error) {
	body, err := s.Network.Get(ctx, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading scrip master: %w", err)
	}

	var records []models.MInstrumentRecord
	if err := sonic.Unmarshal(body, &records); err != nil {
		return nil, helpers.NewDecodeError("scrip master is not a JSON array", err)
	}
	if len(records) == 0 {
		return nil, helpers.NewDecodeError("scrip master is empty", nil)
	}
	return records, nil
}
