package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/money"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	catalog *Catalog
	money   money.Convention
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Catalog *Catalog
	Money   money.Convention
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{catalog: cfg.Catalog, money: cfg.Money}
}

// BookView is an Item as presented to the display, with its price formatted.
type BookView struct {
	Item
	PriceFormatted string `json:"priceFormatted"`
}

// NewBookView formats item with conv.
func NewBookView(item Item, conv money.Convention) BookView {
	return BookView{Item: item, PriceFormatted: conv.Format(item.Price)}
}

// List handles GET /api/v1/books. An optional ?tag= filters by category label.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not loaded", nil)
		return
	}
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	items := h.catalog.Items()
	views := make([]BookView, 0, len(items))
	for _, item := range items {
		if tag != "" && !strings.EqualFold(item.Tag, tag) {
			continue
		}
		views = append(views, NewBookView(item, h.money))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(views)))
	common.Data(w, http.StatusOK, views)
}

// Detail handles GET /api/v1/books/{id}.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not loaded", nil)
		return
	}
	item, ok := h.catalog.Lookup(chi.URLParam(r, "id"))
	if !ok {
		common.WriteError(w, common.NotFound("book not found"))
		return
	}
	common.Data(w, http.StatusOK, NewBookView(item, h.money))
}
