package payment

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/obs"
)

const maxWebhookBody = 1 << 20

// Webhook handles payment provider callbacks, including signature verification and settlement.
type Webhook struct {
	Providers map[string]WebhookProvider
	Replay    ReplayGuard
	Logger    zerolog.Logger
}

// NewWebhook indexes providers by name.
func NewWebhook(replay ReplayGuard, logger zerolog.Logger, providers ...WebhookProvider) Webhook {
	index := make(map[string]WebhookProvider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		index[strings.ToLower(p.Name())] = p
	}
	return Webhook{Providers: index, Replay: replay, Logger: logger}
}

// Handle processes webhook callbacks for the configured payment provider(s).
// Callbacks for unknown or already settled references are acknowledged so the
// provider stops retrying.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		obs.IncPaymentWebhook(providerKey, "invalid_body")
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	result, err := provider.VerifyWebhook(r, body)
	if err != nil {
		obs.IncPaymentWebhook(providerKey, "error")
		common.WriteError(w, common.NewAppError(common.CodePaymentNotConfigured, "webhook unavailable", http.StatusServiceUnavailable, err))
		return
	}
	if !result.Valid {
		obs.IncPaymentWebhook(providerKey, "invalid_signature")
		h.Logger.Warn().Str("provider", providerKey).AnErr("reason", result.Err).Msg("payment_webhook_rejected")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	key := replayKey(providerKey, body)
	if h.Replay != nil {
		fresh, err := h.Replay.Claim(r.Context(), key)
		if err != nil {
			obs.IncPaymentWebhook(providerKey, "replay_store_error")
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "unable to record webhook", nil)
			return
		}
		if !fresh {
			obs.IncPaymentWebhook(providerKey, "replay")
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}

	obs.Tag(r.Context(), "checkout_reference", result.Reference)
	log := h.Logger.With().Str("provider", providerKey).Str("reference", result.Reference).Str("status", string(result.Status)).Logger()
	err = provider.Settle(r.Context(), result)
	switch {
	case err == nil:
		obs.IncPaymentWebhook(providerKey, "settled")
		log.Info().Msg("payment_webhook_settled")
	case errors.Is(err, ErrUnknownReference):
		obs.IncPaymentWebhook(providerKey, "ignored")
		log.Info().Msg("payment_webhook_ignored")
	case errors.Is(err, ErrAmountMismatch):
		obs.IncPaymentWebhook(providerKey, "amount_mismatch")
		log.Warn().Err(err).Msg("payment_webhook_amount_mismatch")
		h.release(r, key, log)
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
		return
	default:
		obs.IncPaymentWebhook(providerKey, "error")
		log.Error().Err(err).Msg("payment_webhook_failed")
		h.release(r, key, log)
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "unable to settle payment", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Webhook) release(r *http.Request, key string, log zerolog.Logger) {
	if h.Replay == nil {
		return
	}
	if err := h.Replay.Release(r.Context(), key); err != nil {
		log.Warn().Err(err).Msg("payment_webhook_release_failed")
	}
}
