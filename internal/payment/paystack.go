package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// PaystackName is the provider key used in routes and metrics.
	PaystackName = "paystack"

	defaultPaystackBaseURL  = "https://api.paystack.co"
	paystackSignatureHeader = "x-paystack-signature"
	placeholderKeyMarker    = "xxxx"
)

// PaystackConfig configures the Paystack provider.
type PaystackConfig struct {
	PublicKey   string
	SecretKey   string
	BaseURL     string
	CallbackURL string
	Client      Doer
	Logger      zerolog.Logger
}

// Paystack opens transactions through the Paystack initialize API and settles
// them from charge webhooks or popup dismissal.
type Paystack struct {
	cfg     PaystackConfig
	pending *Pending
}

// NewPaystack constructs the provider.
func NewPaystack(cfg PaystackConfig) *Paystack {
	cfg.PublicKey = strings.TrimSpace(cfg.PublicKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultPaystackBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Paystack{cfg: cfg, pending: NewPending()}
}

// Name implements Provider.
func (p *Paystack) Name() string { return PaystackName }

// Configured rejects missing keys and the placeholder public key shipped in sample configs.
func (p *Paystack) Configured() error {
	key := p.cfg.PublicKey
	if key == "" || strings.Contains(strings.ToLower(key), placeholderKeyMarker) {
		return fmt.Errorf("%w: paystack public key missing or placeholder", ErrNotConfigured)
	}
	if p.cfg.SecretKey == "" {
		return fmt.Errorf("%w: paystack secret key missing", ErrNotConfigured)
	}
	if p.cfg.Client == nil {
		return fmt.Errorf("%w: paystack http client missing", ErrNotConfigured)
	}
	return nil
}

type paystackInitRequest struct {
	Email       string   `json:"email"`
	Amount      string   `json:"amount"`
	Reference   string   `json:"reference"`
	Currency    string   `json:"currency,omitempty"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// NewTransaction initializes a transaction and registers cb against its reference.
func (p *Paystack) NewTransaction(ctx context.Context, tx Transaction, cb Callbacks) (Handoff, error) {
	if err := p.Configured(); err != nil {
		return Handoff{}, err
	}
	if _, open := p.pending.Lookup(tx.Reference); open {
		return Handoff{}, fmt.Errorf("%w: %s", ErrDuplicateReference, tx.Reference)
	}
	payload, err := json.Marshal(paystackInitRequest{
		Email:       tx.Recipient,
		Amount:      strconv.FormatInt(tx.Amount, 10),
		Reference:   tx.Reference,
		Currency:    tx.Currency,
		CallbackURL: p.cfg.CallbackURL,
		Metadata:    tx.Metadata,
	})
	if err != nil {
		return Handoff{}, fmt.Errorf("encode paystack request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return Handoff{}, fmt.Errorf("build paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.Client.Do(ctx, req)
	if err != nil {
		return Handoff{}, fmt.Errorf("paystack initialize: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Handoff{}, fmt.Errorf("read paystack response: %w", err)
	}
	var decoded paystackInitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Handoff{}, fmt.Errorf("decode paystack response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !decoded.Status {
		return Handoff{}, fmt.Errorf("paystack initialize rejected (status %d): %s", resp.StatusCode, decoded.Message)
	}
	if decoded.Data.Reference != "" && decoded.Data.Reference != tx.Reference {
		return Handoff{}, fmt.Errorf("paystack initialize returned reference %q for %q", decoded.Data.Reference, tx.Reference)
	}
	if err := p.pending.Register(tx, cb); err != nil {
		return Handoff{}, err
	}
	p.cfg.Logger.Info().Str("reference", tx.Reference).Int64("amount", tx.Amount).Msg("paystack_transaction_initialized")
	return Handoff{
		Provider:         PaystackName,
		Reference:        tx.Reference,
		AuthorizationURL: decoded.Data.AuthorizationURL,
		AccessCode:       decoded.Data.AccessCode,
		PublicKey:        p.cfg.PublicKey,
	}, nil
}

// Cancel resolves reference as dismissed by the customer.
func (p *Paystack) Cancel(reference string) error {
	return p.pending.Cancel(reference)
}

// Open returns the number of unresolved transactions.
func (p *Paystack) Open() int { return p.pending.Len() }

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID              json.Number `json:"id"`
		Status          string      `json:"status"`
		Reference       string      `json:"reference"`
		Amount          int64       `json:"amount"`
		GatewayResponse string      `json:"gateway_response"`
	} `json:"data"`
}

// VerifyWebhook checks the HMAC-SHA512 signature of body and normalises the event.
func (p *Paystack) VerifyWebhook(r *http.Request, body []byte) (WebhookResult, error) {
	if p.cfg.SecretKey == "" {
		return WebhookResult{}, fmt.Errorf("%w: paystack secret key missing", ErrNotConfigured)
	}
	provided := strings.TrimSpace(r.Header.Get(paystackSignatureHeader))
	expected := p.Sign(body)
	if provided == "" || !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return WebhookResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}
	var event paystackEvent
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		return WebhookResult{Valid: false, Err: err}, nil
	}
	if strings.TrimSpace(event.Data.Reference) == "" {
		return WebhookResult{Valid: false, Err: errors.New("missing reference")}, nil
	}
	return WebhookResult{
		Valid:         true,
		Reference:     event.Data.Reference,
		Amount:        event.Data.Amount,
		Status:        normalisePaystackStatus(event.Event, event.Data.Status),
		TransactionID: event.Data.ID.String(),
		Message:       event.Data.GatewayResponse,
	}, nil
}

// Settle resolves the open transaction named by result.
func (p *Paystack) Settle(_ context.Context, result WebhookResult) error {
	switch result.Status {
	case StatusSucceeded:
		return p.pending.Succeed(result.Reference, result.Amount, Receipt{
			Provider:      PaystackName,
			Reference:     result.Reference,
			TransactionID: result.TransactionID,
			Status:        string(StatusSucceeded),
			Message:       result.Message,
		})
	case StatusCancelled:
		return p.pending.Cancel(result.Reference)
	default:
		return nil
	}
}

// Sign returns the hex HMAC-SHA512 of body keyed with the secret key.
func (p *Paystack) Sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(p.cfg.SecretKey))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func normalisePaystackStatus(event, status string) Status {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "charge.success":
		return StatusSucceeded
	case "charge.failed":
		return StatusCancelled
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return StatusSucceeded
	case "failed", "abandoned", "reversed":
		return StatusCancelled
	default:
		return StatusPending
	}
}
