package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/autowar/autowar/pkg/validation"
	"github.com/pkg/errors"
)

// Payload is the report content handed to the renderer. Its JSON form is
// also the fallback artifact when rendering fails.
type Payload struct {
	EvaluationID string               `json:"evaluationId"`
	CreatedAt    int64                `json:"createdAt"`
	Results      []validation.Verdict `json:"results"`
}

// Renderer turns a report payload into artifact bytes.
type Renderer interface {
	Render(ctx context.Context, payload Payload) ([]byte, error)
}

type renderRequest struct {
	Payload Payload `json:"payload"`
	Format  string  `json:"format"`
}

// HTTPRenderer delegates rendering to an external service which accepts the
// payload and returns the rendered document bytes.
type HTTPRenderer struct {
	client *http.Client
	url    string
}

func NewHTTPRenderer(url string, client *http.Client) *HTTPRenderer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRenderer{client: client, url: url}
}

func (r *HTTPRenderer) Render(ctx context.Context, payload Payload) ([]byte, error) {
	body, err := json.Marshal(renderRequest{Payload: payload, Format: "pdf"})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling render request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building render request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling renderer")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("renderer returned status %d", res.StatusCode)
	}
	rendered, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading rendered document")
	}
	if len(rendered) == 0 {
		return nil, errors.New("renderer returned an empty document")
	}
	return rendered, nil
}
