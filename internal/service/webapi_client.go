package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ProfileAPI is the external metric-profile Web API, consumed per
// tenant with a tenant-specific token.
type ProfileAPI interface {
	ListMetricProfiles(ctx context.Context, token string) ([]WebAPIMetricProfile, error)
	UpdateMetricProfile(ctx context.Context, token string, profile WebAPIMetricProfile) error
}

// WebAPIMetricProfile is the wire shape of one metric profile.
type WebAPIMetricProfile struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Services    []WebAPIService `json:"services"`
}

// WebAPIService is one service entry of a metric profile.
type WebAPIService struct {
	Service string   `json:"service"`
	Metrics []string `json:"metrics"`
}

type webAPIListResponse struct {
	Data []WebAPIMetricProfile `json:"data"`
}

// WebAPIClient talks to the ARGO Web API. One failed call is final:
// the per-tenant loops upstream record the failure and move on, so no
// retry policy is configured here.
type WebAPIClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

var _ ProfileAPI = (*WebAPIClient)(nil)

// NewWebAPIClient creates a Web API client. The long timeout matches
// the profile service's worst observed response times.
func NewWebAPIClient(baseURL string, timeout time.Duration, logger *zap.Logger) *WebAPIClient {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebAPIClient{httpClient: client, logger: logger}
}

func (c *WebAPIClient) ListMetricProfiles(ctx context.Context, token string) ([]WebAPIMetricProfile, error) {
	var response webAPIListResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("x-api-key", token).
		SetResult(&response).
		Get("/api/v2/metric_profiles")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metric profiles: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("Web API returned error status on metric profile fetch",
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("metric profiles fetch returned %s", resp.Status())
	}
	return response.Data, nil
}

func (c *WebAPIClient) UpdateMetricProfile(ctx context.Context, token string, profile WebAPIMetricProfile) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("x-api-key", token).
		SetBody(profile).
		Put("/api/v2/metric_profiles/" + profile.ID)
	if err != nil {
		return fmt.Errorf("failed to update metric profile %q: %w", profile.Name, err)
	}
	if resp.IsError() {
		c.logger.Error("Web API returned error status on metric profile update",
			zap.String("profile", profile.Name),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("metric profile update returned %s", resp.Status())
	}
	return nil
}
