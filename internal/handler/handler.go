// Package handler содержит HTTP-обработчики API сервиса ReWear.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rewearhq/rewear-system/internal/middleware"
	"github.com/rewearhq/rewear-system/internal/model"
	"github.com/rewearhq/rewear-system/internal/repository"
	"github.com/rewearhq/rewear-system/internal/service"
)

const defaultPageSize = 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, name, email, password string) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (int64, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	CreateProduct(ctx context.Context, ownerID int64, in service.ProductInput) (int64, error)
	AddProductImage(ctx context.Context, productID int64, url string, isPrimary bool) (int64, error)
	GetProduct(ctx context.Context, id int64) (*service.ProductDetails, error)
	GetAvailableProducts(ctx context.Context, category string, limit, offset int) ([]model.Product, error)
	GetUserProducts(ctx context.Context, ownerID int64) ([]model.Product, error)
	ApproveProduct(ctx context.Context, adminID, productID int64) error

	CreateSwapRequest(ctx context.Context, requesterID, receiverProductID, requesterProductID int64) (int64, error)
	CreateRedemptionRequest(ctx context.Context, requesterID, productID int64) (int64, error)
	AcceptTransaction(ctx context.Context, id int64) error
	CompleteTransaction(ctx context.Context, id int64) error
	RejectTransaction(ctx context.Context, id int64) error
	GetUserTransactions(ctx context.Context, userID int64) ([]repository.TransactionSummary, error)

	GetBalance(ctx context.Context, userID int64) (int64, error)
	GetPointTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.PointTransaction, error)

	CreateFeedback(ctx context.Context, reviewerID, transactionID int64, rating int, comment string) error
	GetUserRating(ctx context.Context, userID int64) (*model.Rating, error)

	GetUserNotifications(ctx context.Context, userID int64, limit, offset int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID int64) error
}

// Handler реализует HTTP-обработчики API сервиса ReWear.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type profileResponse struct {
	ID        int64   `json:"uid"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	Points    int64   `json:"points"`
	CreatedAt string  `json:"created_at"`
	LastLogin *string `json:"last_login,omitempty"`
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get profile error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := profileResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Points:    u.Points,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLogin != nil {
		v := u.LastLogin.Format(time.RFC3339)
		resp.LastLogin = &v
	}

	writeJSON(w, http.StatusOK, resp)
}

type balanceResponse struct {
	Points int64 `json:"points"`
}

// GetBalance возвращает баланс баллов текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("get balance error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Points: balance})
}

type pointTransactionResponse struct {
	ID          int64  `json:"id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	ReferenceID *int64 `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// GetPointTransactions возвращает журнал баллов текущего пользователя.
func (h *Handler) GetPointTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	limit, offset := pagination(r)

	entries, err := h.service.GetPointTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("get point transactions error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]pointTransactionResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, pointTransactionResponse{
			ID:          e.ID,
			Amount:      e.Amount,
			Kind:        string(e.Kind),
			ReferenceID: e.ReferenceID,
			Description: e.Description,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type createProductRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Size        string `json:"size"`
	Condition   string `json:"condition"`
}

type createProductResponse struct {
	ID int64 `json:"pid"`
}

// CreateProduct создаёт объявление от имени текущего пользователя.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.Description == "" || req.Category == "" ||
		req.Subcategory == "" || req.Size == "" || req.Condition == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	pid, err := h.service.CreateProduct(r.Context(), userID, service.ProductInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Size:        req.Size,
		Condition:   req.Condition,
	})
	if err != nil {
		h.logger.Error("create product error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createProductResponse{ID: pid})
}

type addImageRequest struct {
	URL       string `json:"url"`
	IsPrimary bool   `json:"is_primary"`
}

// AddProductImage добавляет изображение товара.
func (h *Handler) AddProductImage(w http.ResponseWriter, r *http.Request) {
	pid, ok := urlID(r, "pid")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req addImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.AddProductImage(r.Context(), pid, req.URL, req.IsPrimary)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("add product image error", zap.Error(err), zap.Int64("pid", pid))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"image_id": id})
}

type productImageResponse struct {
	ID        int64  `json:"image_id"`
	URL       string `json:"url"`
	IsPrimary bool   `json:"is_primary"`
}

type productResponse struct {
	ID          int64                  `json:"pid"`
	OwnerID     int64                  `json:"uid"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Category    string                 `json:"category"`
	Subcategory string                 `json:"subcategory"`
	Size        string                 `json:"size,omitempty"`
	Condition   string                 `json:"condition"`
	PointValue  int64                  `json:"point_value"`
	Status      string                 `json:"status"`
	IsFeatured  bool                   `json:"is_featured"`
	CreatedAt   string                 `json:"created_at"`
	Images      []productImageResponse `json:"images,omitempty"`
}

func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Size:        p.Size,
		Condition:   p.Condition,
		PointValue:  p.PointValue,
		Status:      string(p.Status),
		IsFeatured:  p.IsFeatured,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// GetProduct возвращает товар с изображениями.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	pid, ok := urlID(r, "pid")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	details, err := h.service.GetProduct(r.Context(), pid)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get product error", zap.Error(err), zap.Int64("pid", pid))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := toProductResponse(details.Product)
	for _, img := range details.Images {
		resp.Images = append(resp.Images, productImageResponse{
			ID:        img.ID,
			URL:       img.URL,
			IsPrimary: img.IsPrimary,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetAvailableProducts возвращает доступные товары каталога.
func (h *Handler) GetAvailableProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	products, err := h.service.GetAvailableProducts(r.Context(), r.URL.Query().Get("category"), limit, offset)
	if err != nil {
		h.logger.Error("get available products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(products) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetUserProducts возвращает товары текущего пользователя.
func (h *Handler) GetUserProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	products, err := h.service.GetUserProducts(r.Context(), userID)
	if err != nil {
		h.logger.Error("get user products error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(products) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ApproveProduct одобряет объявление. Доступно только администраторам.
func (h *Handler) ApproveProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	pid, ok := urlID(r, "pid")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.ApproveProduct(r.Context(), userID, pid)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAdmin):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrProductUnavailable):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("approve product error", zap.Error(err), zap.Int64("pid", pid))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type swapRequest struct {
	ReceiverProductID  int64 `json:"receiver_pid"`
	RequesterProductID int64 `json:"requester_pid"`
}

type transactionCreatedResponse struct {
	ID int64 `json:"tid"`
}

// CreateSwap создаёт заявку на обмен от имени текущего пользователя.
func (h *Handler) CreateSwap(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverProductID <= 0 || req.RequesterProductID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tid, err := h.service.CreateSwapRequest(r.Context(), userID, req.ReceiverProductID, req.RequesterProductID)
	if err != nil {
		h.writeTransactionError(w, err, userID)
		return
	}

	writeJSON(w, http.StatusCreated, transactionCreatedResponse{ID: tid})
}

type redemptionRequest struct {
	ProductID int64 `json:"pid"`
}

// CreateRedemption создаёт заявку на выкуп от имени текущего пользователя.
func (h *Handler) CreateRedemption(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req redemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tid, err := h.service.CreateRedemptionRequest(r.Context(), userID, req.ProductID)
	if err != nil {
		h.writeTransactionError(w, err, userID)
		return
	}

	writeJSON(w, http.StatusCreated, transactionCreatedResponse{ID: tid})
}

func (h *Handler) writeTransactionError(w http.ResponseWriter, err error, userID int64) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound), errors.Is(err, repository.ErrUserNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrProductUnavailable):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, repository.ErrInsufficientPoints):
		http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
	default:
		h.logger.Error("create transaction error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// transitionTransaction выполняет переход статуса сделки одним из методов сервиса.
func (h *Handler) transitionTransaction(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) error, name string) {
	tid, ok := urlID(r, "tid")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := op(r.Context(), tid)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionNotFound), errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrTransactionStatus):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error(name+" error", zap.Error(err), zap.Int64("tid", tid))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AcceptTransaction принимает заявку на сделку.
func (h *Handler) AcceptTransaction(w http.ResponseWriter, r *http.Request) {
	h.transitionTransaction(w, r, h.service.AcceptTransaction, "accept transaction")
}

// CompleteTransaction завершает принятую сделку.
func (h *Handler) CompleteTransaction(w http.ResponseWriter, r *http.Request) {
	h.transitionTransaction(w, r, h.service.CompleteTransaction, "complete transaction")
}

// RejectTransaction отклоняет заявку на сделку.
func (h *Handler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	h.transitionTransaction(w, r, h.service.RejectTransaction, "reject transaction")
}

type transactionResponse struct {
	ID               int64                      `json:"tid"`
	Type             string                     `json:"transaction_type"`
	Status           string                     `json:"status"`
	PointsExchanged  int64                      `json:"points_exchanged"`
	IsRequester      bool                       `json:"is_requester"`
	OtherUserID      int64                      `json:"other_user_id"`
	RequesterProduct *repository.ProductSummary `json:"requester_product,omitempty"`
	ReceiverProduct  *repository.ProductSummary `json:"receiver_product,omitempty"`
	CreatedAt        string                     `json:"created_at"`
	CompletedAt      *string                    `json:"completed_at,omitempty"`
}

// GetUserTransactions возвращает сделки текущего пользователя.
func (h *Handler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	transactions, err := h.service.GetUserTransactions(r.Context(), userID)
	if err != nil {
		h.logger.Error("get transactions error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		tr := transactionResponse{
			ID:               t.ID,
			Type:             string(t.Type),
			Status:           string(t.Status),
			PointsExchanged:  t.PointsExchanged,
			IsRequester:      t.IsRequester,
			OtherUserID:      t.OtherUserID,
			RequesterProduct: t.RequesterProduct,
			ReceiverProduct:  t.ReceiverProduct,
			CreatedAt:        t.CreatedAt.Format(time.RFC3339),
		}
		if t.CompletedAt != nil {
			v := t.CompletedAt.Format(time.RFC3339)
			tr.CompletedAt = &v
		}
		resp = append(resp, tr)
	}

	writeJSON(w, http.StatusOK, resp)
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// CreateFeedback сохраняет отзыв текущего пользователя по сделке.
func (h *Handler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	tid, ok := urlID(r, "tid")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.CreateFeedback(r.Context(), userID, tid, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRating):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, service.ErrNotParticipant):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, repository.ErrTransactionNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrFeedbackExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("create feedback error", zap.Error(err), zap.Int64("tid", tid))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// GetUserRating возвращает агрегированную оценку пользователя.
func (h *Handler) GetUserRating(w http.ResponseWriter, r *http.Request) {
	uid, ok := urlID(r, "uid")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rating, err := h.service.GetUserRating(r.Context(), uid)
	if err != nil {
		h.logger.Error("get rating error", zap.Error(err), zap.Int64("uid", uid))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if rating == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, rating)
}

type notificationResponse struct {
	ID          int64  `json:"notification_id"`
	Message     string `json:"message"`
	IsRead      bool   `json:"is_read"`
	Type        string `json:"notification_type"`
	ReferenceID *int64 `json:"reference_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// GetNotifications возвращает уведомления текущего пользователя.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	limit, offset := pagination(r)

	notifications, err := h.service.GetUserNotifications(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("get notifications error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(notifications) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, notificationResponse{
			ID:          n.ID,
			Message:     n.Message,
			IsRead:      n.IsRead,
			Type:        n.Type,
			ReferenceID: n.ReferenceID,
			CreatedAt:   n.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// MarkNotificationRead отмечает уведомление текущего пользователя прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("mark notification read error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
