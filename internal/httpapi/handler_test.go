package httpapi

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolbridge/internal/engine"
	"poolbridge/internal/model"
	"poolbridge/internal/token"
	"poolbridge/internal/vault"
)

var (
	ownerAddr    = common.HexToAddress("0x0001")
	selfAddr     = common.HexToAddress("0x0002")
	venueAddr    = common.HexToAddress("0x0003")
	sinkAddr     = common.HexToAddress("0x0004")
	payoutAddr   = common.HexToAddress("0x0005")
	operatorAddr = common.HexToAddress("0x0006")
	userAddr     = common.HexToAddress("0x1001")
)

func newTestServer(t *testing.T) (*httptest.Server, *token.Book) {
	t.Helper()
	poolBook := token.NewBook("USDX")
	gasBook := token.NewBook("GAS")

	factory := func(id model.PoolID) vault.Vault {
		return vault.NewMemory(vault.DeriveAddress(uint64(id)), venueAddr, operatorAddr, poolBook)
	}

	e := engine.New(engine.Config{
		Owner:          ownerAddr,
		Self:           selfAddr,
		Venue:          venueAddr,
		FeeSink:        sinkAddr,
		OperatorPayout: payoutAddr,
		WithdrawFeeBps: 50,
		ProcessingFee:  big.NewInt(1),
	}, poolBook, gasBook, factory, nil, nil)

	require.NoError(t, gasBook.Mint(userAddr, big.NewInt(100)))
	require.NoError(t, poolBook.Mint(userAddr, big.NewInt(10_000)))

	server := httptest.NewServer(NewRouter(NewHandler(e), nil))
	t.Cleanup(server.Close)
	return server, poolBook
}

func doJSON(t *testing.T, server *httptest.Server, method, path, caller string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, server.URL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-Address", caller)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func data(t *testing.T, decoded map[string]interface{}) map[string]interface{} {
	t.Helper()
	payload, ok := decoded["data"].(map[string]interface{})
	require.True(t, ok, "expected data object, got %v", decoded)
	return payload
}

func TestLifecycleOverHTTP(t *testing.T) {
	server, poolBook := newTestServer(t)

	t.Run("RegisterPool", func(t *testing.T) {
		resp, decoded := doJSON(t, server, http.MethodPost, "/v1/pools", ownerAddr.Hex(), registerPoolRequest{ID: 1, Capacity: "100000"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", decoded)
		assert.Equal(t, true, data(t, decoded)["registered"])
	})

	t.Run("SubmitDeposit", func(t *testing.T) {
		resp, decoded := doJSON(t, server, http.MethodPost, "/v1/requests", userAddr.Hex(), submitRequest{
			Kind: "deposit", Pool: 1, Amount: "1000", Receiver: userAddr.Hex(),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", decoded)
		assert.EqualValues(t, 1, data(t, decoded)["sequence"])
	})

	t.Run("QueueHead", func(t *testing.T) {
		resp, decoded := doJSON(t, server, http.MethodGet, "/v1/queue", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		payload := data(t, decoded)
		assert.EqualValues(t, 1, payload["submitted_count"])
		assert.EqualValues(t, 0, payload["processed_up_to"])
		require.NotNil(t, payload["head"])
	})

	t.Run("ConfirmDeposit", func(t *testing.T) {
		shares := "1000"
		resp, decoded := doJSON(t, server, http.MethodPost, "/v1/confirmations", operatorAddr.Hex(), confirmRequest{
			ExpectedSequence: 1, Shares: &shares,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", decoded)
		assert.Equal(t, "executed", data(t, decoded)["status"])
	})

	t.Run("Position", func(t *testing.T) {
		resp, decoded := doJSON(t, server, http.MethodGet, "/v1/positions/1/"+userAddr.Hex(), "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1000", data(t, decoded)["active"])
	})

	t.Run("WithdrawAndClaim", func(t *testing.T) {
		resp, decoded := doJSON(t, server, http.MethodPost, "/v1/requests", userAddr.Hex(), submitRequest{
			Kind: "withdraw", Pool: 1, Amount: "1000",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", decoded)

		receivable := "1000"
		resp, decoded = doJSON(t, server, http.MethodPost, "/v1/confirmations", operatorAddr.Hex(), confirmRequest{
			ExpectedSequence: 2, Receivable: &receivable,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", decoded)
		require.Equal(t, "executed", data(t, decoded)["status"])

		// Simulate the venue returning capital to the vault before the claim.
		require.NoError(t, poolBook.Transfer(venueAddr, vault.DeriveAddress(1), big.NewInt(1000)))

		resp, decoded = doJSON(t, server, http.MethodPost, "/v1/claims", userAddr.Hex(), claimRequest{Account: userAddr.Hex(), Pool: 1})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", decoded)
		payload := data(t, decoded)
		assert.Equal(t, "995", payload["pending"])
		assert.Equal(t, "5", payload["fee"])
	})
}

func TestRejections(t *testing.T) {
	server, _ := newTestServer(t)

	_, decoded := doJSON(t, server, http.MethodPost, "/v1/pools", ownerAddr.Hex(), registerPoolRequest{ID: 1, Capacity: "100"})
	require.Equal(t, "success", decoded["status"])

	t.Run("MissingCaller", func(t *testing.T) {
		resp, _ := doJSON(t, server, http.MethodPost, "/v1/requests", "", submitRequest{Kind: "deposit", Pool: 1, Amount: "1", Receiver: userAddr.Hex()})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("NonOwnerRegister", func(t *testing.T) {
		resp, decoded := doJSON(t, server, http.MethodPost, "/v1/pools", userAddr.Hex(), registerPoolRequest{ID: 2, Capacity: "100"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		errPayload, _ := decoded["error"].(map[string]interface{})
		assert.Equal(t, "unauthorized", errPayload["code"])
	})

	t.Run("DuplicatePool", func(t *testing.T) {
		resp, _ := doJSON(t, server, http.MethodPost, "/v1/pools", ownerAddr.Hex(), registerPoolRequest{ID: 1, Capacity: "100"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("MalformedReceiver", func(t *testing.T) {
		resp, decoded := doJSON(t, server, http.MethodPost, "/v1/requests", userAddr.Hex(), submitRequest{Kind: "deposit", Pool: 1, Amount: "1", Receiver: "0xnothex"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errPayload, _ := decoded["error"].(map[string]interface{})
		assert.Equal(t, "invalid_receiver", errPayload["code"])
	})

	t.Run("MalformedClaimAccount", func(t *testing.T) {
		resp, decoded := doJSON(t, server, http.MethodPost, "/v1/claims", userAddr.Hex(), claimRequest{Account: "not-an-address", Pool: 1})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errPayload, _ := decoded["error"].(map[string]interface{})
		assert.Equal(t, "invalid_account", errPayload["code"])
	})

	t.Run("UnknownPoolSubmit", func(t *testing.T) {
		resp, _ := doJSON(t, server, http.MethodPost, "/v1/requests", userAddr.Hex(), submitRequest{Kind: "deposit", Pool: 9, Amount: "1", Receiver: userAddr.Hex()})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("NonOperatorConfirm", func(t *testing.T) {
		_, decoded := doJSON(t, server, http.MethodPost, "/v1/requests", userAddr.Hex(), submitRequest{Kind: "deposit", Pool: 1, Amount: "1", Receiver: userAddr.Hex()})
		require.Equal(t, "success", decoded["status"])

		shares := "1"
		resp, _ := doJSON(t, server, http.MethodPost, "/v1/confirmations", userAddr.Hex(), confirmRequest{ExpectedSequence: 1, Shares: &shares})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("OutOfOrderConfirm", func(t *testing.T) {
		shares := "1"
		resp, _ := doJSON(t, server, http.MethodPost, "/v1/confirmations", operatorAddr.Hex(), confirmRequest{ExpectedSequence: 5, Shares: &shares})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("PauseGate", func(t *testing.T) {
		resp, _ := doJSON(t, server, http.MethodPost, "/v1/pause", ownerAddr.Hex(), model.PauseFlags{Claim: true})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, server, http.MethodPost, "/v1/claims", userAddr.Hex(), claimRequest{Account: userAddr.Hex(), Pool: 1})
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
