package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/metrics"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const userIDHeader = "X-User-ID"

type Handler struct {
	checkout   *services.CheckoutService
	orders     *services.OrderService
	settings   *services.SettingsService
	metrics    *metrics.CheckoutMetrics
	gatherer   prometheus.Gatherer
	adminToken string
}

func NewHandler(c *services.CheckoutService, o *services.OrderService, s *services.SettingsService, m *metrics.CheckoutMetrics, g prometheus.Gatherer, adminToken string) *Handler {
	return &Handler{
		checkout:   c,
		orders:     o,
		settings:   s,
		metrics:    m,
		gatherer:   g,
		adminToken: adminToken,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(h.observe)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(h.gatherer)))
	}
	r.GET("/settings", h.GetSettings)

	// Maintenance only stops new checkouts; a customer already in the
	// gateway widget must still be able to settle the payment.
	checkout := r.Group("/checkout")
	checkout.POST("", h.maintenance, h.SubmitCheckout)
	checkout.GET("/:orderNumber", h.requireUser, h.GetCheckout)
	checkout.DELETE("/:orderNumber", h.requireUser, h.AbandonCheckout)
	checkout.POST("/:orderNumber/payment", h.requireUser, h.PaymentCallback)

	orders := r.Group("/orders", h.requireUser)
	orders.GET("", h.ListOrders)
	orders.GET("/:orderNumber", h.GetOrder)

	admin := r.Group("/admin", h.requireAdmin)
	admin.PATCH("/orders/:orderNumber/status", h.UpdateOrderStatus)
	admin.PUT("/settings", h.UpdateSettings)
}

func (h *Handler) SubmitCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	exec, err := h.checkout.Submit(ctx, services.CheckoutInput{
		UserID:        c.GetHeader(userIDHeader),
		Form:          req.Form,
		Cart:          req.Cart,
		PaymentMethod: method,
	})
	if errors.Is(err, services.ErrCheckoutInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	session, res, err := exec.AwaitSession(ctx)
	if err != nil {
		slog.WarnContext(ctx, "client left before checkout settled", "order_number", exec.OrderNumber, "error", err)
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		return
	}
	if session != nil {
		c.JSON(http.StatusAccepted, PaymentPendingResponse{
			OrderNumber: exec.OrderNumber,
			State:       services.StateAwaitingPayment,
			Session:     session,
		})
		return
	}
	h.writeResult(c, exec.OrderNumber, *res)
}

func (h *Handler) GetCheckout(c *gin.Context) {
	exec, err := h.checkout.Lookup(userID(c), c.Param("orderNumber"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	out := CheckoutStatusResponse{
		OrderNumber: exec.OrderNumber,
		State:       exec.State(),
	}
	if res, ok := exec.Result(); ok {
		r := toCheckoutResponse(exec.OrderNumber, res)
		out.Result = &r
	} else {
		out.Session = exec.Session()
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) PaymentCallback(c *gin.Context) {
	var req PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderNumber := c.Param("orderNumber")
	res, err := h.checkout.ResolvePayment(c.Request.Context(), userID(c), orderNumber, req.Signal())
	switch {
	case errors.Is(err, services.ErrCheckoutNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrInvalidSignal):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrNoPendingPayment):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.writeResult(c, orderNumber, res)
}

func (h *Handler) AbandonCheckout(c *gin.Context) {
	orderNumber := c.Param("orderNumber")
	res, err := h.checkout.Abandon(c.Request.Context(), userID(c), orderNumber)
	if errors.Is(err, services.ErrCheckoutNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toCheckoutResponse(orderNumber, res))
}

func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListForUser(c.Request.Context(), userID(c), services.OrderFilter{
		Status: c.Query("status"),
		Query:  c.Query("q"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.GetForUser(c.Request.Context(), userID(c), c.Param("orderNumber"))
	if errors.Is(err, services.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + req.Status})
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("orderNumber"), status)
	if errors.Is(err, services.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// GetSettings never fails: when the record cannot be read the closed default
// is reported.
func (h *Handler) GetSettings(c *gin.Context) {
	s, err := h.settings.Settings(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "settings read failed", "error", err)
		s = domain.DefaultSettings(time.Now().UTC())
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch domain.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.settings.Update(c.Request.Context(), patch)
	if errors.Is(err, services.ErrSettingsUnchanged) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) writeResult(c *gin.Context, orderNumber string, res services.CheckoutResult) {
	c.JSON(statusFor(res), toCheckoutResponse(orderNumber, res))
}

func statusFor(res services.CheckoutResult) int {
	switch res.State {
	case services.StateComplete:
		return http.StatusCreated
	case services.StateNeedsLogin:
		return http.StatusUnauthorized
	}
	if res.Err == nil {
		return http.StatusInternalServerError
	}
	switch res.Err.Kind {
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	case services.KindOrdersClosed:
		return http.StatusForbidden
	case services.KindPaymentCancelled:
		return http.StatusConflict
	case services.KindPaymentFailed:
		return http.StatusPaymentRequired
	case services.KindPersistenceNoPayment:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
