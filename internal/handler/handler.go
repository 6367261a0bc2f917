// Package handler exposes the order relay over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/order-relay/internal/domain/order"
	"github.com/xenking/order-relay/internal/render"
)

// DefaultMaxBodyBytes limits the size of an order payload.
const DefaultMaxBodyBytes = 1 << 20

// Processor runs the render-then-deliver pipeline.
type Processor interface {
	Process(ctx context.Context, o *order.Order) (*render.Artifact, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes caps the request body. Zero selects DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Handler serves the order endpoint.
type Handler struct {
	relay        Processor
	maxBodyBytes int64
}

// NewHandler constructs a Handler delegating to the given Processor.
func NewHandler(cfg HandlerConfig, relay Processor) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		relay:        relay,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Register mounts the handler routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/gerar_pdf", h.GeneratePDF)
}
