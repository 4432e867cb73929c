package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"poolbridge/internal/engine"
	"poolbridge/internal/model"
)

// Handler serves the settlement engine over HTTP.
type Handler struct {
	engine *engine.Engine
}

func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestID)
		return
	}

	var kind model.RequestKind
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case "deposit":
		kind = model.KindDeposit
	case "withdraw":
		kind = model.KindWithdraw
	default:
		writeError(w, http.StatusBadRequest, "invalid_kind", "kind must be deposit or withdraw", requestID)
		return
	}

	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), requestID)
		return
	}

	if req.Receiver != "" && !common.IsHexAddress(req.Receiver) {
		writeError(w, http.StatusBadRequest, "invalid_receiver", "receiver is not a valid address", requestID)
		return
	}

	spot, err := h.engine.Submit(engine.SubmitRequest{
		Account:  callerFromContext(r.Context()),
		Kind:     kind,
		Pool:     model.PoolID(req.Pool),
		Amount:   amount,
		Receiver: common.HexToAddress(req.Receiver),
	})
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error(), requestID)
		return
	}
	writeSuccess(w, http.StatusCreated, toSpotResponse(spot))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestID)
		return
	}

	var conf model.Confirmation
	if req.Shares != nil {
		shares, err := model.ParseAmount(*req.Shares)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), requestID)
			return
		}
		conf.Shares = shares
	}
	if req.Receivable != nil {
		receivable, err := model.ParseAmount(*req.Receivable)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), requestID)
			return
		}
		conf.Receivable = receivable
	}

	spot, err := h.engine.Confirm(callerFromContext(r.Context()), req.ExpectedSequence, conf)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error(), requestID)
		return
	}
	writeSuccess(w, http.StatusOK, toSpotResponse(spot))
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestID)
		return
	}

	if !common.IsHexAddress(req.Account) {
		writeError(w, http.StatusBadRequest, "invalid_account", "account is not a valid address", requestID)
		return
	}
	account := common.HexToAddress(req.Account)
	pending, fee, err := h.engine.Claim(account, model.PoolID(req.Pool))
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error(), requestID)
		return
	}
	writeSuccess(w, http.StatusOK, claimResponse{
		Pool:    req.Pool,
		Account: account.Hex(),
		Pending: model.FormatAmount(pending),
		Fee:     model.FormatAmount(fee),
	})
}

func (h *Handler) queueState(w http.ResponseWriter, r *http.Request) {
	resp := queueResponse{
		SubmittedCount: h.engine.Submitted(),
		ProcessedUpTo:  h.engine.Processed(),
	}
	if head, ok := h.engine.PeekHead(); ok {
		spot := toSpotResponse(head)
		resp.Head = &spot
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) getSpot(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	sequence, err := strconv.ParseUint(chi.URLParam(r, "sequence"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_sequence", err.Error(), requestID)
		return
	}
	spot, err := h.engine.Spot(sequence)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_spot", err.Error(), requestID)
		return
	}
	writeSuccess(w, http.StatusOK, toSpotResponse(spot))
}

func (h *Handler) registerPool(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	var req registerPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestID)
		return
	}
	capacity, err := model.ParseAmount(req.Capacity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), requestID)
		return
	}

	pool, err := h.engine.RegisterPool(callerFromContext(r.Context()), model.PoolID(req.ID), capacity)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error(), requestID)
		return
	}
	writeSuccess(w, http.StatusCreated, toPoolResponse(pool))
}

func (h *Handler) updateCapacity(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pool_id", err.Error(), requestID)
		return
	}
	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestID)
		return
	}
	capacity, err := model.ParseAmount(req.Capacity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), requestID)
		return
	}

	if err := h.engine.UpdateCapacity(callerFromContext(r.Context()), model.PoolID(id), capacity); err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error(), requestID)
		return
	}
	pool, _ := h.engine.Pool(model.PoolID(id))
	writeSuccess(w, http.StatusOK, toPoolResponse(pool))
}

func (h *Handler) listPools(w http.ResponseWriter, _ *http.Request) {
	pools := h.engine.Pools()
	out := make([]poolResponse, 0, len(pools))
	for _, pool := range pools {
		out = append(out, toPoolResponse(pool))
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) getPosition(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	pool, err := strconv.ParseUint(chi.URLParam(r, "pool"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pool_id", err.Error(), requestID)
		return
	}
	raw := chi.URLParam(r, "account")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid_account", "account is not a valid address", requestID)
		return
	}
	account := common.HexToAddress(raw)

	position := h.engine.Position(model.PoolID(pool), account)
	writeSuccess(w, http.StatusOK, positionResponse{
		Pool:    pool,
		Account: account.Hex(),
		Active:  position.Active.String(),
		Pending: position.Pending.String(),
		Fee:     position.Fee.String(),
	})
}

func (h *Handler) setPause(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	var flags model.PauseFlags
	if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestID)
		return
	}
	if err := h.engine.SetPause(callerFromContext(r.Context()), flags); err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error(), requestID)
		return
	}
	writeSuccess(w, http.StatusOK, flags)
}

func (h *Handler) getPause(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.engine.Paused())
}

func toSpotResponse(spot model.Spot) spotResponse {
	out := spotResponse{
		Sequence: spot.Sequence,
		Pool:     uint64(spot.Pool),
		Account:  spot.Account.Hex(),
		Vault:    spot.Vault.Hex(),
		Kind:     spot.Kind.String(),
		Amount:   model.FormatAmount(spot.Amount()),
		Status:   spot.Status.String(),
		Reason:   spot.Reason,
	}
	if spot.Kind == model.KindDeposit && spot.Deposit != nil {
		out.Receiver = spot.Deposit.Receiver.Hex()
	}
	return out
}

func toPoolResponse(pool model.Pool) poolResponse {
	return poolResponse{
		ID:              uint64(pool.ID),
		Vault:           pool.Vault.Hex(),
		Registered:      pool.Registered(),
		Capacity:        model.FormatAmount(pool.Capacity),
		AggregateActive: model.FormatAmount(pool.AggregateActive),
	}
}
