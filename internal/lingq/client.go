package lingq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"resty.dev/v3"
)

//go:generate mockgen -source=client.go -destination=../mocks/lingq/mock_api.go -package=mock_lingq

const DefaultBaseURL = "https://www.lingq.com/api/v2"

// API is the subset of the LingQ API the downloader uses.
type API interface {
	TestConnection(ctx context.Context) error
	Languages(ctx context.Context) ([]Language, error)
	Contexts(ctx context.Context) ([]Context, error)
	ListCards(ctx context.Context, language string, page, pageSize int) (CardPage, error)
	CountCards(ctx context.Context, language string) (int, error)
}

// RequestObserver is notified after every completed HTTP exchange.
type RequestObserver interface {
	ObserveRequest(endpoint string, statusCode int)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	httpClient *resty.Client
	observer   RequestObserver
}

var _ API = (*Client)(nil)

type ClientOption func(*Client)

func WithObserver(observer RequestObserver) ClientOption {
	return func(c *Client) {
		c.observer = observer
	}
}

func NewClient(config Config, opts ...ClientOption) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseURL)
	httpClient.SetHeader("Authorization", "Token "+config.APIKey)
	httpClient.SetHeader("Content-Type", "application/json")
	if config.Timeout > 0 {
		httpClient.SetTimeout(config.Timeout)
	}

	client := &Client{
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (client *Client) Close() error {
	return client.httpClient.Close()
}

func (client *Client) observe(endpoint string, statusCode int) {
	if client.observer == nil {
		return
	}
	client.observer.ObserveRequest(endpoint, statusCode)
}

// get issues a GET request and decodes a successful response into result.
func (client *Client) get(ctx context.Context, endpoint string, request *resty.Request, path string, result any) error {
	response, err := request.
		SetContext(ctx).
		SetResult(result).
		Get(path)
	if err != nil {
		client.observe(endpoint, 0)
		return fmt.Errorf("httpClient.Get(%s) > %w", path, err)
	}
	client.observe(endpoint, response.StatusCode())

	slog.Default().Debug("lingq response",
		"path", path,
		"status", response.StatusCode(),
	)
	if response.IsError() {
		return errorFromStatus(response.StatusCode(), response.Header(), response.String())
	}
	return nil
}

// TestConnection checks that the API key is accepted.
func (client *Client) TestConnection(ctx context.Context) error {
	var languages []Language
	if err := client.get(ctx, "languages", client.httpClient.R(), "/languages/", &languages); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func (client *Client) Languages(ctx context.Context) ([]Language, error) {
	var languages []Language
	if err := client.get(ctx, "languages", client.httpClient.R(), "/languages/", &languages); err != nil {
		return nil, fmt.Errorf("client.get(languages) > %w", err)
	}
	return languages, nil
}

func (client *Client) Contexts(ctx context.Context) ([]Context, error) {
	var response contextsResponse
	if err := client.get(ctx, "contexts", client.httpClient.R(), "/contexts/", &response); err != nil {
		return nil, fmt.Errorf("client.get(contexts) > %w", err)
	}
	return response.Results, nil
}

func (client *Client) ListCards(ctx context.Context, language string, page, pageSize int) (CardPage, error) {
	var result CardPage
	request := client.httpClient.R().
		SetPathParam("language", language).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("page_size", strconv.Itoa(pageSize))
	if err := client.get(ctx, "cards", request, "/{language}/cards/", &result); err != nil {
		return CardPage{}, fmt.Errorf("client.get(cards, %s, page %d) > %w", language, page, err)
	}
	return result, nil
}

func (client *Client) CountCards(ctx context.Context, language string) (int, error) {
	page, err := client.ListCards(ctx, language, 1, 1)
	if err != nil {
		return 0, err
	}
	return page.Count, nil
}
