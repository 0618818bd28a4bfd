package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"github.com/mirren/bunnymo-bridge-go/pkg/errors"
	"go.uber.org/zap"
)

// Client talks to the chat host's plugin API over HTTP. Every call is scoped
// to its own failure: a failed lorebook load or injection is logged by the
// caller and aborts only that one operation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// ListLorebooks returns the names of all lorebooks the host knows about.
func (c *Client) ListLorebooks(ctx context.Context) ([]string, error) {
	var books []Lorebook
	if err := c.doRequest(ctx, "GET", "/lorebooks", nil, &books); err != nil {
		c.logger.Error("Failed to list lorebooks", zap.Error(err))
		return nil, err
	}

	names := make([]string, 0, len(books))
	for _, b := range books {
		if b.Name != "" {
			names = append(names, b.Name)
		}
	}
	return names, nil
}

// GetLorebook loads all entries of one lorebook by name.
func (c *Client) GetLorebook(ctx context.Context, name string) ([]domain.LorebookEntry, error) {
	var resp lorebookResponse
	path := "/lorebooks/" + url.PathEscape(name)
	if err := c.doRequest(ctx, "GET", path, nil, &resp); err != nil {
		c.logger.Error("Failed to load lorebook",
			zap.Error(err),
			zap.String("lorebook", name),
		)
		return nil, err
	}
	return resp.Entries, nil
}

// Inject hands an ephemeral injection payload to the host.
func (c *Client) Inject(ctx context.Context, req InjectRequest) error {
	req.Ephemeral = true

	if err := c.doRequest(ctx, "POST", "/inject", req, nil); err != nil {
		c.logger.Error("Failed to inject prompt text",
			zap.Error(err),
			zap.String("role", req.Role),
			zap.Int("depth", req.Depth),
		)
		return err
	}
	return nil
}

// PushCards hands parsed characters to the host's presentation layer
// unmodified; the host owns all rendering. The header is display text for the
// card group.
func (c *Client) PushCards(ctx context.Context, header string, characters []domain.Character) error {
	req := cardsRequest{Header: header, Characters: characters}

	if err := c.doRequest(ctx, "POST", "/cards", req, nil); err != nil {
		c.logger.Error("Failed to push character cards",
			zap.Error(err),
			zap.Int("count", len(characters)),
		)
		return err
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.ListLorebooks(ctx)
	return err == nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, reqBody, respBody any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return errors.NewAPIError("failed to marshal request", 400, map[string]any{
				"url": url,
			}).WithCause(err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return errors.NewAPIError("failed to create request", 500, map[string]any{
			"url": url,
		}).WithCause(err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewAPIError("request failed", 500, map[string]any{
			"url": url,
		}).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return errors.NewAPIError(
			fmt.Sprintf("host API error: %s", resp.Status),
			resp.StatusCode,
			map[string]any{
				"url":  url,
				"body": string(bodyBytes),
			},
		)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return errors.NewAPIError("failed to decode response", 500, map[string]any{
				"url": url,
			}).WithCause(err)
		}
	}

	return nil
}
