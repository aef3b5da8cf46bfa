package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func setupRouter(catalog Catalog) *gin.Engine {
	return setupRouterWithLimit(catalog, 0)
}

func setupRouterWithLimit(catalog Catalog, maxMachines int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tracer := otel.Tracer("test")
	registry := NewMachineRegistry(catalog, maxMachines, zap.NewNop(), tracer)
	handler := NewMachineHandler(registry, tracer, zap.NewNop())

	r := gin.New()
	handler.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createMachine(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doRequest(t, r, http.MethodPost, "/api/machines", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["machine_id"])
	return resp["machine_id"]
}

func decodeOutcome(t *testing.T, w *httptest.ResponseRecorder) outcomeResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp outcomeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	r := setupRouter(NewInMemoryCatalog(nil))

	w := doRequest(t, r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestMachineHandler_PurchaseFlow(t *testing.T) {
	r := setupRouter(NewInMemoryCatalog(testStock()))
	id := createMachine(t, r)

	resp := decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/select", `{"product_id":"2"}`))
	assert.Equal(t, OutcomeAwaitingFunds, resp.Kind)
	assert.Equal(t, "Please insert some money first", resp.Message)

	resp = decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/coins", `{"value":50}`))
	assert.Equal(t, OutcomeInsufficientFunds, resp.Kind)
	assert.Equal(t, 40, resp.Shortfall)
	assert.Equal(t, "Insufficient funds to purchase this item. Please add another 40", resp.Message)

	resp = decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/coins", `{"value":100}`))
	assert.Equal(t, OutcomeSaleCompleted, resp.Kind)
	assert.Equal(t, 60, resp.Change)
	assert.Equal(t, []Coin{50, 10}, resp.ChangeCoins)
	assert.Equal(t, "Sale completed! Returning change as follows: 50, 10", resp.Message)

	w := doRequest(t, r, http.MethodGet, "/api/machines/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot MachineSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, id, snapshot.MachineID)
	assert.Equal(t, StateIdle, snapshot.State)
	assert.Empty(t, snapshot.Selection)
	assert.Zero(t, snapshot.PendingTotal)
}

func TestMachineHandler_ExactMoneyHasZeroChange(t *testing.T) {
	r := setupRouter(NewInMemoryCatalog(testStock()))
	id := createMachine(t, r)

	for _, coin := range []string{"20", "20", "50"} {
		resp := decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/coins", `{"value":`+coin+`}`))
		assert.Equal(t, OutcomeCoinAccepted, resp.Kind)
	}

	w := doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/select", `{"product_id":"2"}`)
	resp := decodeOutcome(t, w)

	assert.Equal(t, OutcomeSaleCompleted, resp.Kind)
	assert.Equal(t, "Sale completed!", resp.Message)
	assert.Contains(t, w.Body.String(), `"change":0`)
}

func TestMachineHandler_InvalidCoinAndUnknownProduct(t *testing.T) {
	r := setupRouter(NewInMemoryCatalog(testStock()))
	id := createMachine(t, r)

	resp := decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/coins", `{"value":3}`))
	assert.Equal(t, OutcomeInvalidCoin, resp.Kind)
	assert.Equal(t, "We only accept 1, 2, 5, 10, 20, 50, 100, 200", resp.Message)

	resp = decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/select", `{"product_id":"999"}`))
	assert.Equal(t, OutcomeProductNotFound, resp.Kind)
	assert.Equal(t, "That code does not exist in our system.", resp.Message)
}

func TestMachineHandler_MachineLimitAndRemoval(t *testing.T) {
	r := setupRouterWithLimit(NewInMemoryCatalog(testStock()), 1)
	id := createMachine(t, r)

	w := doRequest(t, r, http.MethodPost, "/api/machines", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = doRequest(t, r, http.MethodDelete, "/api/machines/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(t, r, http.MethodDelete, "/api/machines/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	createMachine(t, r)
}

func TestMachineHandler_OutcomeCarriesPendingTotal(t *testing.T) {
	r := setupRouter(NewInMemoryCatalog(testStock()))
	id := createMachine(t, r)
	decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/coins", `{"value":100}`))

	resp := decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/select", `{"product_id":"999"}`))
	assert.Equal(t, OutcomeProductNotFound, resp.Kind)
	assert.Equal(t, 100, resp.PendingTotal)

	resp = decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/reload", `{"product_id":"3","quantity":"lots"}`))
	assert.Equal(t, OutcomeInvalidQuantity, resp.Kind)
	assert.Equal(t, 100, resp.PendingTotal)
}

func TestMachineHandler_Reload(t *testing.T) {
	catalog := NewInMemoryCatalog(testStock())
	r := setupRouter(catalog)
	id := createMachine(t, r)

	resp := decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/reload", `{"product_id":"3","quantity":4}`))
	assert.Equal(t, OutcomeStockReloaded, resp.Kind)
	assert.Equal(t, 4, resp.Quantity)
	assert.Equal(t, "Reloaded, 4 now in stock", resp.Message)

	resp = decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/reload", `{"product_id":"3"}`))
	assert.Equal(t, OutcomeStockReloaded, resp.Kind)
	assert.Equal(t, 5, resp.Quantity)

	for _, body := range []string{
		`{"product_id":"3","quantity":0}`,
		`{"product_id":"3","quantity":-2}`,
		`{"product_id":"3","quantity":"lots"}`,
	} {
		resp = decodeOutcome(t, doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/reload", body))
		assert.Equal(t, OutcomeInvalidQuantity, resp.Kind, body)
		assert.Equal(t, "You need to specify a quantity greater than 0", resp.Message)
	}
	assert.Equal(t, 5, quantityOf(t, catalog, "3"))
}

func TestMachineHandler_UnknownMachine(t *testing.T) {
	r := setupRouter(NewInMemoryCatalog(testStock()))

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/machines/nope", ""},
		{http.MethodPost, "/api/machines/nope/select", `{"product_id":"1"}`},
		{http.MethodPost, "/api/machines/nope/coins", `{"value":10}`},
		{http.MethodPost, "/api/machines/nope/reload", `{"product_id":"1","quantity":1}`},
	}

	for _, tt := range tests {
		w := doRequest(t, r, tt.method, tt.path, tt.body)
		assert.Equal(t, http.StatusNotFound, w.Code, tt.path)
	}
}

func TestMachineHandler_BadRequests(t *testing.T) {
	r := setupRouter(NewInMemoryCatalog(testStock()))
	id := createMachine(t, r)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/select", `{"product_id":`},
		{"missing product", "/select", `{}`},
		{"missing coin value", "/coins", `{}`},
		{"coin value not a number", "/coins", `{"value":"ten"}`},
		{"reload without product", "/reload", `{"quantity":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, r, http.MethodPost, "/api/machines/"+id+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestMachineHandler_CatalogUnavailable(t *testing.T) {
	catalog := new(MockCatalog)
	catalog.On("Find", mock.Anything, "1").Return(nil, errors.New("connection refused"))
	r := setupRouter(catalog)
	id := createMachine(t, r)

	w := doRequest(t, r, http.MethodPost, "/api/machines/"+id+"/select", `{"product_id":"1"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "catalog unavailable")
	catalog.AssertExpectations(t)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{"", 1, true},
		{"null", 1, true},
		{"3", 3, true},
		{"-1", -1, true},
		{`"3"`, 0, false},
		{"2.5", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseQuantity(json.RawMessage(tt.raw))
		assert.Equal(t, tt.wantOK, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
