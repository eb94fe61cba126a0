package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-monitor/internal/control"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// Health is the monitor's liveness answer.
type Health struct {
	Status    string `json:"status"`
	Published bool   `json:"published"`
	Version   string `json:"version"`
}

// Client talks to the monitor's HTTP API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health

	resp, err := c.http.R().SetContext(ctx).SetResult(&h).Get("/healthz")
	if err != nil {
		return Health{}, errors.Wrap(errors.ErrCodeUnreachable, "monitor is not reachable", err)
	}

	if resp.IsError() {
		return Health{}, errors.Newf(errors.ErrCodeBadStatus, "healthz answered %d", resp.StatusCode())
	}

	return h, nil
}

// Dashboard fetches the full model.
func (c *Client) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/all-data")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnreachable, "monitor is not reachable", err)
	}

	if resp.StatusCode() == http.StatusServiceUnavailable {
		return nil, errors.New(errors.ErrCodeDataStale, "monitor has not completed a tick yet")
	}

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeBadStatus, "all-data answered %d", resp.StatusCode())
	}

	var d model.Dashboard
	if err := json.Unmarshal(resp.Body(), &d); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeError, "unexpected all-data document", err)
	}

	return &d, nil
}

// Post sends a write command such as /api/refresh-data.
func (c *Client) Post(ctx context.Context, path string, body any) (control.Result, error) {
	var res control.Result

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Post(path)
	if err != nil {
		return control.Result{}, errors.Wrap(errors.ErrCodeUnreachable, "monitor is not reachable", err)
	}

	if err := json.Unmarshal(resp.Body(), &res); err != nil || (resp.IsError() && res.Message == "") {
		return control.Result{}, errors.Newf(errors.ErrCodeBadStatus, "%s answered %d", path, resp.StatusCode())
	}

	if resp.IsError() {
		return res, errors.New(errors.ErrCodeBadStatus, res.Message)
	}

	return res, nil
}
