package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/checkout"
	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/money"
	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/payment"
	"github.com/noah-isme/storefront/internal/session"
)

const defaultKeepAlive = 15 * time.Second

// Session is the serialised cart the handlers drive.
type Session interface {
	Submit(ctx context.Context, cmd cart.Command) (session.Result, error)
	Snapshot(ctx context.Context) (cart.Snapshot, error)
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Session  Session
	Hub      *Hub
	Money    money.Convention
	Validate *validator.Validate
	// Canceller closes a transaction when the payment window is dismissed.
	Canceller payment.Canceller
	Outcomes  *checkout.Recorder
	// Sandbox enables the sandbox approval route when set.
	Sandbox   *payment.Sandbox
	KeepAlive time.Duration
	Logger    zerolog.Logger
}

// Handler exposes the cart, checkout and render stream endpoints.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Validate == nil {
		cfg.Validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	return &Handler{cfg: cfg}
}

type addItemRequest struct {
	ID string `json:"id" validate:"required,max=128"`
}

// Recipient presence is checked by checkout itself so an empty cart still wins.
type checkoutRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// Cart handles GET /api/v1/cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cfg.Session.Snapshot(r.Context())
	if err != nil {
		common.WriteError(w, sessionError(err))
		return
	}
	common.Data(w, http.StatusOK, NewCartView(snap, h.cfg.Money))
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.submit(w, r, cart.Add(strings.TrimSpace(req.ID)))
}

// Increment handles POST /api/v1/cart/items/{id}/increment.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, cart.Inc(chi.URLParam(r, "id")))
}

// Decrement handles POST /api/v1/cart/items/{id}/decrement.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, cart.Dec(chi.URLParam(r, "id")))
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, cart.Remove(chi.URLParam(r, "id")))
}

// Unknown ids are a no-op: the unchanged cart comes back with changed=false.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, cmd cart.Command) {
	res, err := h.cfg.Session.Submit(r.Context(), cmd)
	if err != nil {
		common.WriteError(w, sessionError(err))
		return
	}
	common.Data(w, http.StatusOK, GestureView{
		CartView: NewCartView(res.Snapshot, h.cfg.Money),
		Changed:  res.Changed,
	})
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.cfg.Session.Submit(r.Context(), cart.Checkout(req.Email))
	if err != nil {
		common.WriteError(w, checkoutError(err))
		return
	}
	if res.Attempt == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout did not open a payment", nil)
		return
	}
	obs.Tag(r.Context(), "checkout_reference", res.Attempt.Reference)
	common.Data(w, http.StatusCreated, NewCheckoutView(*res.Attempt, h.cfg.Money))
}

// Cancel handles POST /api/v1/checkout/{reference}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Canceller == nil {
		common.JSONError(w, http.StatusServiceUnavailable, common.CodePaymentNotConfigured, "payment provider not configured", nil)
		return
	}
	reference := chi.URLParam(r, "reference")
	obs.Tag(r.Context(), "checkout_reference", reference)
	if err := h.cfg.Canceller.Cancel(reference); err != nil {
		common.WriteError(w, resolveError(err))
		return
	}
	common.Data(w, http.StatusAccepted, map[string]string{"reference": reference})
}

// LatestOutcome handles GET /api/v1/checkout/outcomes/latest.
func (h *Handler) LatestOutcome(w http.ResponseWriter, _ *http.Request) {
	if h.cfg.Outcomes == nil {
		common.WriteError(w, common.NotFound("no checkout outcome yet"))
		return
	}
	outcome, ok := h.cfg.Outcomes.Latest()
	if !ok {
		common.WriteError(w, common.NotFound("no checkout outcome yet"))
		return
	}
	common.Data(w, http.StatusOK, outcome)
}

// SandboxSucceed handles POST /api/v1/sandbox/transactions/{reference}/succeed.
func (h *Handler) SandboxSucceed(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Sandbox == nil {
		common.WriteError(w, common.NotFound("sandbox disabled"))
		return
	}
	receipt, err := h.cfg.Sandbox.Succeed(chi.URLParam(r, "reference"))
	if err != nil {
		common.WriteError(w, resolveError(err))
		return
	}
	common.Data(w, http.StatusAccepted, receipt)
}

// Stream handles GET /api/v1/cart/stream as server-sent events. The current
// cart is sent first, then one "cart" event per render.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Hub == nil {
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeUnavailable, "render stream unavailable", nil)
		return
	}
	rc := http.NewResponseController(w)
	id, views, cancel := h.cfg.Hub.Subscribe()
	defer cancel()

	snap, err := h.cfg.Session.Snapshot(r.Context())
	if err != nil {
		common.WriteError(w, sessionError(err))
		return
	}

	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := h.cfg.Logger.With().Str("subscriber", id).Logger()
	logger.Debug().Msg("stream_opened")
	defer logger.Debug().Msg("stream_closed")

	if err := writeEvent(w, rc, "cart", NewCartView(snap, h.cfg.Money)); err != nil {
		return
	}
	ticker := time.NewTicker(h.cfg.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, "cart", view); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return rc.Flush()
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	if err := h.cfg.Validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[strings.ToLower(fe.Field())] = fe.Tag()
			}
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", details)
			return false
		}
		common.WriteError(w, common.BadRequest("invalid payload", err))
		return false
	}
	return true
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrStopped):
		return common.NewAppError(common.CodeUnavailable, "session stopped", http.StatusServiceUnavailable, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError(common.CodeUnavailable, "session busy", http.StatusServiceUnavailable, err)
	default:
		return err
	}
}

func checkoutError(err error) error {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return common.NewAppError(common.CodeCartEmpty, "cart is empty", http.StatusConflict, err)
	case errors.Is(err, checkout.ErrPaymentNotConfigured):
		return common.NewAppError(common.CodePaymentNotConfigured, "payment provider not configured", http.StatusServiceUnavailable, err)
	case errors.Is(err, checkout.ErrRecipientRequired):
		return common.NewAppError(common.CodeRecipientRequired, "email is required", http.StatusBadRequest, err)
	case errors.Is(err, checkout.ErrProviderUnavailable):
		return common.NewAppError(common.CodePaymentUnavailable, "payment provider unavailable", http.StatusBadGateway, err)
	default:
		return sessionError(err)
	}
}

func resolveError(err error) error {
	switch {
	case errors.Is(err, payment.ErrUnknownReference):
		return common.NotFound("transaction not found")
	case errors.Is(err, payment.ErrAmountMismatch):
		return common.NewAppError(common.CodeBadRequest, "amount mismatch", http.StatusBadRequest, err)
	default:
		return err
	}
}
