// internal/service/cart/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"bazaar/internal/service/cart/application"
	"bazaar/internal/service/cart/domain"
)

// CartHandler 封装了购物车与结算的 HTTP 处理器。
// 它只做参数提取、链路透传和错误码映射，业务都在应用服务里。
type CartHandler struct {
	cartSvc     *application.CartApplicationService
	checkoutSvc *application.CheckoutApplicationService
	feed        *StockFeedHub
}

// NewCartHandler 创建一个新的 HTTP 处理器实例。
func NewCartHandler(cartSvc *application.CartApplicationService, checkoutSvc *application.CheckoutApplicationService, feed *StockFeedHub) *CartHandler {
	return &CartHandler{cartSvc: cartSvc, checkoutSvc: checkoutSvc, feed: feed}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *CartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/cart/reserve", h.reserveHandler)
	mux.HandleFunc("/cart/adjust", h.adjustHandler)
	mux.HandleFunc("/cart/release", h.releaseHandler)
	mux.HandleFunc("/cart/items", h.listCartHandler)
	mux.HandleFunc("/checkout", h.checkoutHandler)
	mux.HandleFunc("/orders/cancel", h.cancelOrderHandler)
	mux.HandleFunc("/orders/get", h.getOrderHandler)
	mux.HandleFunc("/stock/availability", h.availabilityHandler)

	if h.feed != nil {
		mux.HandleFunc("/ws/stock-feed", h.feed.ServeWs)
	}
}

func (h *CartHandler) reserveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extract(r)

	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	record, err := h.cartSvc.Reserve(ctx, r.URL.Query().Get("shopperId"), r.URL.Query().Get("productId"), quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"recordId":  record.ID,
		"quantity":  record.Quantity,
		"expiresAt": record.ExpiresAt,
	})
}

func (h *CartHandler) adjustHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extract(r)

	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	record, err := h.cartSvc.Adjust(ctx, r.URL.Query().Get("recordId"), quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recordId":  record.ID,
		"quantity":  record.Quantity,
		"expiresAt": record.ExpiresAt,
	})
}

func (h *CartHandler) releaseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extract(r)

	if err := h.cartSvc.Release(ctx, r.URL.Query().Get("recordId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (h *CartHandler) listCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	records, err := h.cartSvc.ListCart(ctx, r.URL.Query().Get("shopperId"))
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		items = append(items, map[string]interface{}{
			"recordId":  record.ID,
			"productId": record.ProductID,
			"quantity":  record.Quantity,
			"expiresAt": record.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// checkoutRequest 是结算接口的请求体。
type checkoutRequest struct {
	ShopperID string `json:"shopperId"`
	Delivery  struct {
		Recipient string `json:"recipient"`
		Phone     string `json:"phone"`
		Address   string `json:"address"`
	} `json:"delivery"`
	Lines []struct {
		RecordID  string `json:"recordId"`
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
}

func (h *CartHandler) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extract(r)

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	lines := make([]application.CheckoutLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, application.CheckoutLine{
			ReservationID: line.RecordID,
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
		})
	}

	order, err := h.checkoutSvc.Finalize(ctx, req.ShopperID, domain.DeliveryInfo{
		Recipient: req.Delivery.Recipient,
		Phone:     req.Delivery.Phone,
		Address:   req.Delivery.Address,
	}, lines)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"orderId":     order.ID,
		"totalAmount": order.TotalAmount,
		"state":       order.State,
	})
}

func (h *CartHandler) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extract(r)

	order, err := h.checkoutSvc.CancelOrder(ctx, r.URL.Query().Get("orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orderId": order.ID,
		"state":   order.State,
	})
}

func (h *CartHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	order, err := h.checkoutSvc.GetOrder(ctx, r.URL.Query().Get("orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *CartHandler) availabilityHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	available, err := h.cartSvc.Availability(ctx, r.URL.Query().Get("productId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"available": available})
}

// extract 从请求头恢复上游链路上下文。
func extract(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError 把领域错误映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrLineMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrReservationNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidReservation),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrOrderNotCancellable):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
