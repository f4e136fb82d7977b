package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sacolao-service/internal/models"
	"sacolao-service/internal/service"
	"sacolao-service/internal/store"
	"sacolao-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	checkout  *service.CheckoutService
	orders    *service.OrderService
	lifecycle *service.LifecycleService
	stock     *service.StockService
	store     *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	orders *service.OrderService,
	lifecycle *service.LifecycleService,
	stock *service.StockService,
	store *store.Store,
) *Handler {
	return &Handler{
		checkout:  checkout,
		orders:    orders,
		lifecycle: lifecycle,
		stock:     stock,
		store:     store,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.processCheckout)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.PATCH("/orders/:id/payment", h.updateOrderPayment)

		v1.GET("/customers", h.listCustomers)
		v1.GET("/customers/:id", h.getCustomer)
		v1.GET("/customers/:id/orders", h.listCustomerOrders)
		v1.GET("/customers/:id/stats", h.getCustomerStats)
		v1.GET("/customers/:id/addresses", h.listAddresses)
		v1.POST("/customers/:id/addresses", h.createAddress)
		v1.DELETE("/addresses/:id", h.deleteAddress)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/categories", h.listCategories)
		v1.GET("/units", h.listUnits)
		v1.POST("/products/:id/stock", h.adjustStock)
		v1.GET("/products/:id/moves", h.listMoves)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// processCheckout handles the anonymous storefront checkout
func (h *Handler) processCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.checkout.ProcessCheckout(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrEmptyCart) || errors.Is(err, service.ErrOrderInvariant) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":   "Failed to process checkout",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

type orderItemRequest struct {
	ProductID *string         `json:"product_id"`
	Name      string          `json:"name" binding:"required"`
	UnitID    *string         `json:"unit_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type createOrderRequest struct {
	CustomerID    *string               `json:"customer_id"`
	AddressID     *string               `json:"address_id"`
	Status        models.OrderStatus    `json:"status"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	Discount      decimal.Decimal       `json:"discount"`
	Total         decimal.Decimal       `json:"total"`
	PaymentMethod *models.PaymentMethod `json:"payment_method"`
	Paid          bool                  `json:"paid"`
	Channel       models.Channel        `json:"channel"`
	Notes         *string               `json:"notes"`
	Items         []orderItemRequest    `json:"items"`
}

// createOrder handles back-office order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order := &models.Order{
		CustomerID:    req.CustomerID,
		AddressID:     req.AddressID,
		Status:        req.Status,
		Subtotal:      req.Subtotal,
		Discount:      req.Discount,
		Total:         req.Total,
		PaymentMethod: req.PaymentMethod,
		Paid:          req.Paid,
		Channel:       req.Channel,
		Notes:         req.Notes,
	}
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitID:    it.UnitID,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			Total:     it.Total,
		})
	}

	if err := h.orders.CreateOrder(c.Request.Context(), order, items); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrOrderInvariant) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":   "Failed to create order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, order)
}

// listOrders handles the back-office order list
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	detail, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// updateOrderStatus handles order status transitions, including cancellation
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	err := h.lifecycle.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		var invalid *models.InvalidTransitionError
		var partial *models.PartialCommitError
		switch {
		case errors.Is(err, models.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.As(err, &invalid):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.As(err, &partial):
			// The cancel committed; the restock did not fully land.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Order canceled but stock restore incomplete",
				"details": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

type updatePaymentRequest struct {
	Paid *bool `json:"paid" binding:"required"`
}

// updateOrderPayment handles the paid flag
func (h *Handler) updateOrderPayment(c *gin.Context) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.lifecycle.UpdatePayment(c.Request.Context(), c.Param("id"), *req.Paid); err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"paid": *req.Paid})
}

// listCustomers handles the back-office customer list
func (h *Handler) listCustomers(c *gin.Context) {
	customers, err := h.store.ListCustomers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

// getCustomer handles get customer by ID
func (h *Handler) getCustomer(c *gin.Context) {
	customer, err := h.store.GetCustomerByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, customer)
}

// listAddresses handles a customer's delivery addresses
func (h *Handler) listAddresses(c *gin.Context) {
	addresses, err := h.store.ListAddresses(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

// createAddress handles adding a delivery address
func (h *Handler) createAddress(c *gin.Context) {
	var address models.Address
	if err := c.ShouldBindJSON(&address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	address.CustomerID = c.Param("id")

	if err := h.store.CreateAddress(c.Request.Context(), &address); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, address)
}

// deleteAddress handles removing a delivery address
func (h *Handler) deleteAddress(c *gin.Context) {
	if err := h.store.DeleteAddress(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// listCustomerOrders handles a customer's order history
func (h *Handler) listCustomerOrders(c *gin.Context) {
	orders, err := h.orders.ListCustomerOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getCustomerStats handles the customer aggregate view
func (h *Handler) getCustomerStats(c *gin.Context) {
	stats, err := h.orders.GetCustomerStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// listProducts handles the storefront product list. With ?ids=a,b,c it
// returns just those products, which the storefront uses to revalidate a
// saved cart.
func (h *Handler) listProducts(c *gin.Context) {
	ctx := c.Request.Context()

	var products []models.Product
	var err error
	if ids := c.Query("ids"); ids != "" {
		products, err = h.store.GetProductsByIDs(ctx, strings.Split(ids, ","))
	} else {
		products, err = h.store.ListActiveProducts(ctx)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.store.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, product)
}

// listCategories handles the storefront category list
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.store.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// listUnits handles the sales unit list
func (h *Handler) listUnits(c *gin.Context) {
	units, err := h.store.ListUnits(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"units": units})
}

type adjustStockRequest struct {
	Type models.MoveType `json:"type" binding:"required"`
	Qty  decimal.Decimal `json:"qty"`
	Note string          `json:"note"`
}

// adjustStock handles admin stock mutations: "in", "out" or an "adjust"
// recount that overwrites the level
func (h *Handler) adjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	productID := c.Param("id")

	var newQty decimal.Decimal
	var err error
	switch req.Type {
	case models.MoveTypeIn:
		newQty, err = h.stock.IncrementStock(ctx, productID, req.Qty, req.Note)
	case models.MoveTypeOut:
		newQty, err = h.stock.DecrementStock(ctx, productID, req.Qty, req.Note)
	case models.MoveTypeAdjust:
		newQty, err = h.stock.AdjustStock(ctx, productID, req.Qty, req.Note)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown move type"})
		return
	}

	if err != nil {
		var insufficient *models.InsufficientStockError
		switch {
		case errors.Is(err, models.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		case errors.As(err, &insufficient):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNonPositiveQty):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"quantity": newQty})
}

// listMoves handles the inventory ledger view
func (h *Handler) listMoves(c *gin.Context) {
	moves, err := h.stock.ListMoves(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"moves": moves})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
