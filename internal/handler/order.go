package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/order-relay/internal/relay"
)

const acceptedMessage = "Pedido processado com sucesso"

// GeneratePDF accepts {"pedido": Order}, renders and delivers it, and answers
// with {"success": true, "message": ...} or {"success": false, "error": ...}.
// A bare OPTIONS request is acknowledged without touching the pipeline.
func (h *Handler) GeneratePDF(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		writeStatusOK(w)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	lg := zctx.From(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		lg.Warn("Read request body", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, errors.Wrap(err, "read body").Error())
		return
	}

	o, err := decodeRequest(body)
	if err != nil {
		lg.Warn("Order rejected", zap.String("stage", "decode"), zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := h.relay.Process(ctx, o); err != nil {
		lg.Debug("Order failed", zap.String("outcome", string(relay.OutcomeOf(err))))
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, acceptedMessage)
}
