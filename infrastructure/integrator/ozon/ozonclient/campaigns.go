package ozonclient

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	ozondomain "github.com/vfg2006/ozon-performance-sync/infrastructure/integrator/ozon/domain"
)

// ListCampaigns returns every advertising campaign visible to the account.
func (c *OzonClient) ListCampaigns(ctx context.Context, token string) ([]ozondomain.Campaign, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/client/campaign", token, nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, errors.Errorf("campaign endpoint returned status %d: %s", status, body)
	}

	var response ozondomain.CampaignList
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "decoding campaign list")
	}

	return response.List, nil
}
