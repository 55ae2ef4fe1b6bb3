// Package service реализует бизнес-логику сервиса ReWear.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rewearhq/rewear-system/internal/model"
	"github.com/rewearhq/rewear-system/internal/points"
	"github.com/rewearhq/rewear-system/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAdmin возвращается, когда операция доступна только администратору.
	ErrNotAdmin = errors.New("admin role required")
	// ErrInvalidRating возвращается, если оценка отзыва вне диапазона 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrNotParticipant возвращается, если пользователь не является стороной сделки.
	ErrNotParticipant = errors.New("user is not a party of the transaction")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, name, email string, passwordHash []byte) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	CreateProduct(ctx context.Context, ownerID int64, p repository.ProductParams) (int64, error)
	AddProductImage(ctx context.Context, productID int64, url string, isPrimary bool) (int64, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProductImages(ctx context.Context, productID int64) ([]model.ProductImage, error)
	GetAvailableProducts(ctx context.Context, category string, limit, offset int) ([]model.Product, error)
	GetUserProducts(ctx context.Context, ownerID int64) ([]model.Product, error)
	ApproveProduct(ctx context.Context, id int64) (*repository.ApprovedProduct, error)

	CreateSwapRequest(ctx context.Context, requesterID, receiverProductID, requesterProductID int64) (*repository.SwapRequestResult, error)
	CreateRedemptionRequest(ctx context.Context, requesterID, productID int64) (*repository.RedemptionRequestResult, error)
	AcceptTransaction(ctx context.Context, id int64) (*repository.TransactionParties, error)
	CompleteTransaction(ctx context.Context, id int64) (*repository.TransactionParties, error)
	RejectTransaction(ctx context.Context, id int64) (*repository.TransactionParties, error)
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	GetUserTransactions(ctx context.Context, userID int64) ([]repository.TransactionSummary, error)

	GetBalance(ctx context.Context, userID int64) (int64, error)
	SumPointTransactions(ctx context.Context, userID int64) (int64, error)
	GetPointTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.PointTransaction, error)

	CreateFeedback(ctx context.Context, transactionID, reviewerID, revieweeID int64, rating int, comment string) error
	GetUserRating(ctx context.Context, userID int64) (*model.Rating, error)

	CreateNotification(ctx context.Context, userID int64, message, notificationType string, referenceID *int64) error
	GetUserNotifications(ctx context.Context, userID int64, limit, offset int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID int64) error
}

// Service содержит бизнес-логику сервиса ReWear.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// notify записывает уведомление после фиксации основной операции.
// Сбой уведомления логируется и не влияет на результат операции.
func (s *Service) notify(ctx context.Context, userID int64, message, notificationType string, referenceID *int64) {
	if err := s.repo.CreateNotification(ctx, userID, message, notificationType, referenceID); err != nil {
		s.logger.Error("create notification",
			zap.Error(err),
			zap.Int64("userID", userID),
			zap.String("type", notificationType))
	}
}

// RegisterUser регистрирует нового пользователя и возвращает его идентификатор.
func (s *Service) RegisterUser(ctx context.Context, name, email, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, name, email, hash)
}

// AuthenticateUser проверяет email и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (int64, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLogin(ctx, u.ID, time.Now()); err != nil {
		s.logger.Error("update last login", zap.Error(err), zap.Int64("userID", u.ID))
	}

	return u.ID, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ProductInput содержит данные нового объявления.
type ProductInput struct {
	Title       string
	Description string
	Category    string
	Subcategory string
	Size        string
	Condition   string
}

// CreateProduct создаёт объявление. Балльная стоимость вычисляется один раз
// здесь и далее не пересчитывается.
func (s *Service) CreateProduct(ctx context.Context, ownerID int64, in ProductInput) (int64, error) {
	return s.repo.CreateProduct(ctx, ownerID, repository.ProductParams{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Subcategory: in.Subcategory,
		Size:        in.Size,
		Condition:   in.Condition,
		PointValue:  points.CalculateValue(in.Category, in.Subcategory, in.Condition),
	})
}

// AddProductImage добавляет изображение товара.
func (s *Service) AddProductImage(ctx context.Context, productID int64, url string, isPrimary bool) (int64, error) {
	return s.repo.AddProductImage(ctx, productID, url, isPrimary)
}

// ProductDetails содержит товар вместе с его изображениями.
type ProductDetails struct {
	Product model.Product
	Images  []model.ProductImage
}

// GetProduct возвращает товар с изображениями.
func (s *Service) GetProduct(ctx context.Context, id int64) (*ProductDetails, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	images, err := s.repo.GetProductImages(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ProductDetails{Product: *p, Images: images}, nil
}

// GetAvailableProducts возвращает доступные товары с необязательным фильтром по категории.
func (s *Service) GetAvailableProducts(ctx context.Context, category string, limit, offset int) ([]model.Product, error) {
	return s.repo.GetAvailableProducts(ctx, category, limit, offset)
}

// GetUserProducts возвращает товары пользователя.
func (s *Service) GetUserProducts(ctx context.Context, ownerID int64) ([]model.Product, error) {
	return s.repo.GetUserProducts(ctx, ownerID)
}

// ApproveProduct одобряет объявление от имени администратора: товар становится
// доступным, владельцу начисляется стоимость товара и отправляется уведомление.
func (s *Service) ApproveProduct(ctx context.Context, adminID, productID int64) error {
	admin, err := s.repo.GetUserByID(ctx, adminID)
	if err != nil {
		return err
	}
	if admin.Role != model.RoleAdmin {
		return ErrNotAdmin
	}

	approved, err := s.repo.ApproveProduct(ctx, productID)
	if err != nil {
		return err
	}

	s.notify(ctx, approved.OwnerID,
		fmt.Sprintf("Your item '%s' has been approved!", approved.Title),
		"product_approved", &productID)

	return nil
}

// CreateSwapRequest создаёт заявку на обмен и уведомляет владельца запрошенной вещи.
func (s *Service) CreateSwapRequest(ctx context.Context, requesterID, receiverProductID, requesterProductID int64) (int64, error) {
	res, err := s.repo.CreateSwapRequest(ctx, requesterID, receiverProductID, requesterProductID)
	if err != nil {
		return 0, err
	}

	s.notify(ctx, res.ReceiverID,
		fmt.Sprintf("You have a new swap request for your item '%s'", res.ReceiverTitle),
		"swap_request", &res.TransactionID)

	return res.TransactionID, nil
}

// CreateRedemptionRequest создаёт заявку на выкуп и уведомляет владельца товара.
func (s *Service) CreateRedemptionRequest(ctx context.Context, requesterID, productID int64) (int64, error) {
	res, err := s.repo.CreateRedemptionRequest(ctx, requesterID, productID)
	if err != nil {
		return 0, err
	}

	s.notify(ctx, res.OwnerID,
		fmt.Sprintf("Someone wants to redeem your item '%s' with points", res.Title),
		"redemption_request", &res.TransactionID)

	return res.TransactionID, nil
}

// AcceptTransaction принимает заявку и уведомляет её инициатора.
func (s *Service) AcceptTransaction(ctx context.Context, id int64) error {
	parties, err := s.repo.AcceptTransaction(ctx, id)
	if err != nil {
		return err
	}

	s.notify(ctx, parties.RequesterID,
		"Your transaction request has been accepted!",
		"transaction_accepted", &parties.ID)

	return nil
}

// CompleteTransaction завершает принятую сделку и уведомляет обе стороны.
func (s *Service) CompleteTransaction(ctx context.Context, id int64) error {
	parties, err := s.repo.CompleteTransaction(ctx, id)
	if err != nil {
		return err
	}

	s.notify(ctx, parties.RequesterID,
		"Your transaction has been completed successfully!",
		"transaction_completed", &parties.ID)
	s.notify(ctx, parties.ReceiverID,
		"Your transaction has been completed successfully!",
		"transaction_completed", &parties.ID)

	return nil
}

// RejectTransaction отклоняет заявку и уведомляет её инициатора.
func (s *Service) RejectTransaction(ctx context.Context, id int64) error {
	parties, err := s.repo.RejectTransaction(ctx, id)
	if err != nil {
		return err
	}

	s.notify(ctx, parties.RequesterID,
		"Your transaction request has been rejected.",
		"transaction_rejected", &parties.ID)

	return nil
}

// GetUserTransactions возвращает сделки пользователя.
func (s *Service) GetUserTransactions(ctx context.Context, userID int64) ([]repository.TransactionSummary, error) {
	return s.repo.GetUserTransactions(ctx, userID)
}

// GetBalance возвращает кешированный баланс баллов пользователя.
// Баланс сверяется с суммой журнала, расхождение логируется как ошибка движка сделок.
func (s *Service) GetBalance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}

	if sum, err := s.repo.SumPointTransactions(ctx, userID); err == nil && sum != balance {
		s.logger.Warn("points ledger mismatch",
			zap.Int64("userID", userID),
			zap.Int64("balance", balance),
			zap.Int64("ledgerSum", sum))
	}

	return balance, nil
}

// GetPointTransactions возвращает журнал баллов пользователя.
func (s *Service) GetPointTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.PointTransaction, error) {
	return s.repo.GetPointTransactions(ctx, userID, limit, offset)
}

// CreateFeedback сохраняет отзыв участника сделки о второй стороне.
func (s *Service) CreateFeedback(ctx context.Context, reviewerID, transactionID int64, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	t, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}

	var revieweeID int64
	switch reviewerID {
	case t.RequesterID:
		revieweeID = t.ReceiverID
	case t.ReceiverID:
		revieweeID = t.RequesterID
	default:
		return ErrNotParticipant
	}

	return s.repo.CreateFeedback(ctx, transactionID, reviewerID, revieweeID, rating, comment)
}

// GetUserRating возвращает агрегированную оценку пользователя, nil при отсутствии отзывов.
func (s *Service) GetUserRating(ctx context.Context, userID int64) (*model.Rating, error) {
	return s.repo.GetUserRating(ctx, userID)
}

// GetUserNotifications возвращает уведомления пользователя.
func (s *Service) GetUserNotifications(ctx context.Context, userID int64, limit, offset int) ([]model.Notification, error) {
	return s.repo.GetUserNotifications(ctx, userID, limit, offset)
}

// MarkNotificationRead отмечает уведомление пользователя прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	return s.repo.MarkNotificationRead(ctx, userID, notificationID)
}
