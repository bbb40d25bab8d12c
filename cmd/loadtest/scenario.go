package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

const (
	createOrderPath = "/api/v1/orders"
	maxErrorBody    = 512
)

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	SubTotal  string `json:"sub_total"`
}

type addressRequest struct {
	ID         string `json:"id"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
}

type createOrderRequest struct {
	CustomerID   string             `json:"customer_id"`
	RestaurantID string             `json:"restaurant_id"`
	Price        string             `json:"price"`
	Items        []orderItemRequest `json:"items"`
	Address      addressRequest     `json:"address"`
}

type createOrderResponse struct {
	OrderID    string `json:"order_id"`
	TrackingID string `json:"order_tracking_id"`
	Status     string `json:"order_status"`
	Message    string `json:"message"`
}

type trackOrderResponse struct {
	TrackingID string `json:"order_tracking_id"`
	Status     string `json:"order_status"`
}

// apiError — ответ сервиса с неуспешным статусом.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// apiClient — минимальный клиент HTTP API сервиса заказов.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, httpClient *http.Client) *apiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &apiClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *apiClient) createOrder(ctx context.Context, req createOrderRequest) (createOrderResponse, int, error) {
	var resp createOrderResponse
	code, err := c.do(ctx, http.MethodPost, createOrderPath, req, http.StatusCreated, &resp)
	return resp, code, err
}

func (c *apiClient) trackOrder(ctx context.Context, trackingID string) (trackOrderResponse, int, error) {
	var resp trackOrderResponse
	code, err := c.do(ctx, http.MethodGet, createOrderPath+"/"+url.PathEscape(trackingID), nil, http.StatusOK, &resp)
	return resp, code, err
}

// do отправляет запрос и декодирует тело ответа. Возвращает HTTP-статус или 0 при транспортной ошибке.
func (c *apiClient) do(ctx context.Context, method, path string, body any, want int, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// orderFaker генерирует покупателей и адреса доставки. gofakeit.Faker не потокобезопасен.
type orderFaker struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

func newOrderFaker(seed int64) *orderFaker {
	return &orderFaker{faker: gofakeit.New(uint64(seed))}
}

func (f *orderFaker) order(cfg config) createOrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	subTotal := cfg.price.Mul(decimal.NewFromInt(int64(cfg.quantity))).StringFixedBank(2)
	return createOrderRequest{
		CustomerID:   f.faker.UUID(),
		RestaurantID: cfg.restaurantID,
		Price:        subTotal,
		Items: []orderItemRequest{{
			ProductID: cfg.productID,
			Quantity:  cfg.quantity,
			Price:     cfg.price.StringFixedBank(2),
			SubTotal:  subTotal,
		}},
		Address: addressRequest{
			ID:         f.faker.UUID(),
			Street:     f.faker.Street(),
			PostalCode: f.faker.Zip(),
			City:       f.faker.City(),
		},
	}
}

func runScenario(client *apiClient, faker *orderFaker, cfg config, index int, col *collector) error {
	scenarioStart := time.Now()
	scenarioCode := http.StatusOK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioCode)
	}()

	created, err := callCreateOrder(client, cfg.timeout, faker.order(cfg), col)
	if err != nil {
		scenarioCode = statusOf(err, http.StatusInternalServerError)
		return fmt.Errorf("scenario %d: %w", index, err)
	}
	if created.TrackingID == "" {
		scenarioCode = http.StatusInternalServerError
		return fmt.Errorf("scenario %d: create response returned empty tracking id", index)
	}

	if cfg.mode == modeCreate {
		return nil
	}

	tracked, err := callTrackOrder(client, cfg.timeout, created.TrackingID, col)
	if err != nil {
		scenarioCode = statusOf(err, http.StatusInternalServerError)
		return fmt.Errorf("scenario %d: %w", index, err)
	}
	if tracked.TrackingID != created.TrackingID {
		scenarioCode = http.StatusInternalServerError
		return fmt.Errorf("scenario %d: tracked %q, want %q", index, tracked.TrackingID, created.TrackingID)
	}
	return nil
}

func callCreateOrder(client *apiClient, timeout time.Duration, req createOrderRequest, col *collector) (createOrderResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, code, err := client.createOrder(ctx, req)
	col.record("CreateOrder", time.Since(start), recordedCode(code, err))
	return resp, err
}

func callTrackOrder(client *apiClient, timeout time.Duration, trackingID string, col *collector) (trackOrderResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, code, err := client.trackOrder(ctx, trackingID)
	col.record("TrackOrder", time.Since(start), recordedCode(code, err))
	return resp, err
}

// recordedCode помечает ответ 2xx с неразборчивым телом как ошибку сервера.
func recordedCode(code int, err error) int {
	if err != nil && code >= 200 && code < 300 {
		return http.StatusInternalServerError
	}
	return code
}

func statusOf(err error, fallback int) int {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return 0
	}
	return fallback
}
