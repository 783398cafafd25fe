package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/service"
	"storefront/internal/shop"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ImageServer resolves stored images for download
type ImageServer interface {
	Path(name string, preview bool) (string, error)
}

// Services groups what the handler calls into
type Services struct {
	Auth     *service.AuthService
	Catalog  *service.CatalogService
	Cart     *service.CartService
	Checkout *service.CheckoutService
	Reports  *service.ReportService
	Images   ImageServer
}

// Handler contains HTTP handlers
type Handler struct {
	auth        *service.AuthService
	catalog     *service.CatalogService
	cart        *service.CartService
	checkout    *service.CheckoutService
	reports     *service.ReportService
	images      ImageServer
	tokens      *TokenManager
	admins      map[string]bool
	corsOrigins []string
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler. admins lists the usernames allowed on admin routes;
// empty means every logged-in user.
func NewHandler(services Services, tokens *TokenManager, admins, corsOrigins []string) *Handler {
	adminSet := make(map[string]bool, len(admins))
	for _, a := range admins {
		adminSet[strings.ToLower(a)] = true
	}
	return &Handler{
		auth:        services.Auth,
		catalog:     services.Catalog,
		cart:        services.Cart,
		checkout:    services.Checkout,
		reports:     services.Reports,
		images:      services.Images,
		tokens:      tokens,
		admins:      adminSet,
		corsOrigins: corsOrigins,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(corsMiddleware(h.corsOrigins))
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/login", h.login)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/images/:name", h.getImage)
	}

	authed := v1.Group("")
	authed.Use(h.authMiddleware())
	{
		authed.POST("/auth/logout", h.logout)

		authed.GET("/profile", h.getProfile)
		authed.PUT("/profile", h.editProfile)
		authed.PUT("/profile/photo", h.changePhoto)
		authed.DELETE("/profile", h.deleteAccount)

		authed.GET("/cart", h.getCart)
		authed.POST("/cart/items", h.addToCart)
		authed.DELETE("/cart/items/:name", h.removeFromCart)

		authed.GET("/checkout", h.checkoutStatus)
		authed.POST("/checkout/method", h.selectMethod)
		authed.POST("/checkout/details", h.enterDetails)
		authed.POST("/checkout/confirm", h.confirmCheckout)
		authed.POST("/checkout", h.oneShotCheckout)
	}

	admin := authed.Group("/admin")
	admin.Use(h.adminMiddleware())
	{
		admin.POST("/products", h.addProduct)
		admin.PUT("/products/:id", h.editProduct)
		admin.DELETE("/products/:id", h.removeProduct)

		admin.GET("/reports/summary", h.reportSummary)
		admin.GET("/reports/payment-methods", h.reportPaymentMethods)
		admin.GET("/reports/top-products", h.reportTopProducts)
		admin.GET("/reports/daily-sales", h.reportDailySales)
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

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type cartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

type methodRequest struct {
	Method string `json:"method" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": profileView(user.Username, user.Photo)})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	user, session, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, expires, err := h.tokens.Issue(session)
	if err != nil {
		h.logger.Error("Failed to sign token", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires.Unix(),
		"user":       profileView(user.Username, user.Photo),
	})
}

func (h *Handler) logout(c *gin.Context) {
	h.auth.Logout(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) getProfile(c *gin.Context) {
	user, err := h.auth.CurrentUser(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileView(user.Username, user.Photo))
}

func (h *Handler) editProfile(c *gin.Context) {
	var req service.ProfileChange
	if !bindJSON(c, &req) {
		return
	}

	user, changed, err := h.auth.EditProfile(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    profileView(user.Username, user.Photo),
		"changed": changed,
	})
}

func (h *Handler) changePhoto(c *gin.Context) {
	upload, closeFn, ok := formFile(c, "photo", true)
	if !ok {
		return
	}
	defer closeFn()

	user, err := h.auth.ChangePhoto(c.Request.Context(), *upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileView(user.Username, user.Photo))
}

func (h *Handler) deleteAccount(c *gin.Context) {
	if err := h.auth.DeleteAccount(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listProducts(c *gin.Context) {
	products := h.catalog.List(c.Request.Context(), c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) getImage(c *gin.Context) {
	preview := c.Query("preview") == "1" || c.Query("preview") == "true"
	path, err := h.images.Path(c.Param("name"), preview)
	if err != nil {
		respondError(c, err)
		return
	}
	c.File(path)
}

func (h *Handler) getCart(c *gin.Context) {
	summary, err := h.cart.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) addToCart(c *gin.Context) {
	var req cartItemRequest
	if !bindJSON(c, &req) {
		return
	}

	summary, err := h.cart.Add(c.Request.Context(), req.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) removeFromCart(c *gin.Context) {
	summary, err := h.cart.Remove(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) checkoutStatus(c *gin.Context) {
	status, err := h.checkout.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) selectMethod(c *gin.Context) {
	var req methodRequest
	if !bindJSON(c, &req) {
		return
	}

	status, err := h.checkout.SelectMethod(c.Request.Context(), req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) enterDetails(c *gin.Context) {
	var req shop.CardDetails
	if !bindJSON(c, &req) {
		return
	}

	status, err := h.checkout.EnterDetails(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) confirmCheckout(c *gin.Context) {
	rec, err := h.checkout.Confirm(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) oneShotCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	rec, err := h.checkout.Checkout(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) addProduct(c *gin.Context) {
	form, closeFn, ok := productForm(c)
	if !ok {
		return
	}
	defer closeFn()

	product, err := h.catalog.AddProduct(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) editProduct(c *gin.Context) {
	form, closeFn, ok := productForm(c)
	if !ok {
		return
	}
	defer closeFn()

	product, err := h.catalog.EditProduct(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) removeProduct(c *gin.Context) {
	product, err := h.catalog.RemoveProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) reportSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.reports.Summary(c.Request.Context()))
}

func (h *Handler) reportPaymentMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": h.reports.PaymentMethods(c.Request.Context())})
}

func (h *Handler) reportTopProducts(c *gin.Context) {
	n := 0
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid query parameter",
				"details": "n must be a non-negative integer",
			})
			return
		}
		n = parsed
	}
	c.JSON(http.StatusOK, gin.H{"products": h.reports.TopProducts(c.Request.Context(), n)})
}

func (h *Handler) reportDailySales(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"days": h.reports.DailySales(c.Request.Context())})
}

func profileView(username, photo string) gin.H {
	view := gin.H{"username": username, "photo": photo}
	if photo != "" {
		view["photo_url"] = "/api/v1/images/" + photo
	}
	return view
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// productForm reads the multipart admin form. The image part is optional here; the
// catalog decides whether one is required.
func productForm(c *gin.Context) (service.ProductForm, func(), bool) {
	form := service.ProductForm{
		Name:        c.PostForm("name"),
		Price:       c.PostForm("price"),
		Stock:       c.PostForm("stock"),
		Description: c.PostForm("description"),
	}

	upload, closeFn, ok := formFile(c, "image", false)
	if !ok {
		return form, closeFn, false
	}
	form.Image = upload
	return form, closeFn, true
}

// formFile opens a multipart file. A missing optional file yields a nil upload.
func formFile(c *gin.Context, field string, required bool) (*service.Upload, func(), bool) {
	header, err := c.FormFile(field)
	missing := errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart)
	if missing && !required {
		return nil, func() {}, true
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid upload",
			"details": field + ": " + err.Error(),
		})
		return nil, func() {}, false
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid upload",
			"details": err.Error(),
		})
		return nil, func() {}, false
	}
	return &service.Upload{Filename: header.Filename, Reader: f}, func() { f.Close() }, true
}

// respondError maps domain error kinds to HTTP statuses
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal error"

	switch shop.KindOf(err) {
	case shop.KindValidation:
		status, message = http.StatusBadRequest, "Validation failed"
	case shop.KindConflict:
		status, message = http.StatusConflict, "Conflict"
	case shop.KindAuth:
		status, message = http.StatusUnauthorized, "Authentication failed"
	case shop.KindNotFound:
		status, message = http.StatusNotFound, "Not found"
	case shop.KindIO, shop.KindDecode:
		message = "Storage error"
	}

	if status == http.StatusInternalServerError {
		util.GetLogger().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
