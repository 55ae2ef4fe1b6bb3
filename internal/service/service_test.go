package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rewearhq/rewear-system/internal/model"
	"github.com/rewearhq/rewear-system/internal/repository"
)

type notificationRecord struct {
	userID  int64
	message string
	kind    string
}

type stubRepo struct {
	createUserID  int64
	createUserErr error

	userByEmail    *model.User
	userByEmailErr error

	userByID    *model.User
	userByIDErr error

	updateLastLoginErr error

	createProductID     int64
	createProductErr    error
	createProductParams *repository.ProductParams

	approveResult *repository.ApprovedProduct
	approveErr    error

	swapResult *repository.SwapRequestResult
	swapErr    error

	redemptionResult *repository.RedemptionRequestResult
	redemptionErr    error

	acceptResult *repository.TransactionParties
	acceptErr    error

	completeResult *repository.TransactionParties
	completeErr    error

	rejectResult *repository.TransactionParties
	rejectErr    error

	transaction    *model.Transaction
	transactionErr error

	feedbackErr      error
	feedbackReviewee int64

	balance   int64
	ledgerSum int64

	notifications   []notificationRecord
	notificationErr error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, name, email string, passwordHash []byte) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.userByEmail, s.userByEmailErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userByID, s.userByIDErr
}

func (s *stubRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return s.updateLastLoginErr
}

func (s *stubRepo) CreateProduct(ctx context.Context, ownerID int64, p repository.ProductParams) (int64, error) {
	s.createProductParams = &p
	return s.createProductID, s.createProductErr
}

func (s *stubRepo) AddProductImage(ctx context.Context, productID int64, url string, isPrimary bool) (int64, error) {
	return 0, nil
}

func (s *stubRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return nil, repository.ErrProductNotFound
}

func (s *stubRepo) GetProductImages(ctx context.Context, productID int64) ([]model.ProductImage, error) {
	return nil, nil
}

func (s *stubRepo) GetAvailableProducts(ctx context.Context, category string, limit, offset int) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) GetUserProducts(ctx context.Context, ownerID int64) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) ApproveProduct(ctx context.Context, id int64) (*repository.ApprovedProduct, error) {
	return s.approveResult, s.approveErr
}

func (s *stubRepo) CreateSwapRequest(ctx context.Context, requesterID, receiverProductID, requesterProductID int64) (*repository.SwapRequestResult, error) {
	return s.swapResult, s.swapErr
}

func (s *stubRepo) CreateRedemptionRequest(ctx context.Context, requesterID, productID int64) (*repository.RedemptionRequestResult, error) {
	return s.redemptionResult, s.redemptionErr
}

func (s *stubRepo) AcceptTransaction(ctx context.Context, id int64) (*repository.TransactionParties, error) {
	return s.acceptResult, s.acceptErr
}

func (s *stubRepo) CompleteTransaction(ctx context.Context, id int64) (*repository.TransactionParties, error) {
	return s.completeResult, s.completeErr
}

func (s *stubRepo) RejectTransaction(ctx context.Context, id int64) (*repository.TransactionParties, error) {
	return s.rejectResult, s.rejectErr
}

func (s *stubRepo) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return s.transaction, s.transactionErr
}

func (s *stubRepo) GetUserTransactions(ctx context.Context, userID int64) ([]repository.TransactionSummary, error) {
	return nil, nil
}

func (s *stubRepo) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.balance, nil
}

func (s *stubRepo) SumPointTransactions(ctx context.Context, userID int64) (int64, error) {
	return s.ledgerSum, nil
}

func (s *stubRepo) GetPointTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.PointTransaction, error) {
	return nil, nil
}

func (s *stubRepo) CreateFeedback(ctx context.Context, transactionID, reviewerID, revieweeID int64, rating int, comment string) error {
	s.feedbackReviewee = revieweeID
	return s.feedbackErr
}

func (s *stubRepo) GetUserRating(ctx context.Context, userID int64) (*model.Rating, error) {
	return nil, nil
}

func (s *stubRepo) CreateNotification(ctx context.Context, userID int64, message, notificationType string, referenceID *int64) error {
	if s.notificationErr != nil {
		return s.notificationErr
	}
	s.notifications = append(s.notifications, notificationRecord{
		userID:  userID,
		message: message,
		kind:    notificationType,
	})
	return nil
}

func (s *stubRepo) GetUserNotifications(ctx context.Context, userID int64, limit, offset int) ([]model.Notification, error) {
	return nil, nil
}

func (s *stubRepo) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	return nil
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := NewService(repo, nil)

	_, err := svc.RegisterUser(context.Background(), "Alice", "alice@example.com", "pass")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	repo := &stubRepo{
		userByEmail: &model.User{
			ID:           1,
			Email:        "alice@example.com",
			PasswordHash: hash,
		},
	}
	svc := NewService(repo, nil)

	_, err = svc.AuthenticateUser(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUser_UnknownEmail(t *testing.T) {
	repo := &stubRepo{
		userByEmailErr: repository.ErrUserNotFound,
	}
	svc := NewService(repo, nil)

	_, err := svc.AuthenticateUser(context.Background(), "nobody@example.com", "pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateProduct_CalculatesPointValue(t *testing.T) {
	repo := &stubRepo{createProductID: 7}
	svc := NewService(repo, nil)

	_, err := svc.CreateProduct(context.Background(), 1, ProductInput{
		Title:       "Wool Coat",
		Description: "Warm winter coat",
		Category:    "Outerwear",
		Subcategory: "Heavy",
		Size:        "M",
		Condition:   "New with tags",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.createProductParams == nil {
		t.Fatal("CreateProduct was not called")
	}
	if got := repo.createProductParams.PointValue; got != 90 {
		t.Fatalf("point value = %d, want 90", got)
	}
}

func TestApproveProduct_RequiresAdmin(t *testing.T) {
	repo := &stubRepo{
		userByID: &model.User{ID: 1, Role: model.RoleUser},
	}
	svc := NewService(repo, nil)

	err := svc.ApproveProduct(context.Background(), 1, 5)
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if len(repo.notifications) != 0 {
		t.Fatalf("no notifications expected, got %d", len(repo.notifications))
	}
}

func TestApproveProduct_NotifiesOwner(t *testing.T) {
	repo := &stubRepo{
		userByID:      &model.User{ID: 1, Role: model.RoleAdmin},
		approveResult: &repository.ApprovedProduct{OwnerID: 9, Title: "Wool Coat", PointValue: 81},
	}
	svc := NewService(repo, nil)

	if err := svc.ApproveProduct(context.Background(), 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(repo.notifications))
	}
	n := repo.notifications[0]
	if n.userID != 9 || n.kind != "product_approved" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestCreateSwapRequest_NoNotificationOnError(t *testing.T) {
	repo := &stubRepo{
		swapErr: repository.ErrInsufficientPoints,
	}
	svc := NewService(repo, nil)

	_, err := svc.CreateSwapRequest(context.Background(), 1, 5, 9)
	if !errors.Is(err, repository.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if len(repo.notifications) != 0 {
		t.Fatalf("no notifications expected, got %d", len(repo.notifications))
	}
}

func TestCreateSwapRequest_NotifiesReceiver(t *testing.T) {
	repo := &stubRepo{
		swapResult: &repository.SwapRequestResult{
			TransactionID: 15,
			ReceiverID:    4,
			ReceiverTitle: "Denim Jacket",
		},
	}
	svc := NewService(repo, nil)

	tid, err := svc.CreateSwapRequest(context.Background(), 1, 5, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tid != 15 {
		t.Fatalf("transaction id = %d, want 15", tid)
	}

	if len(repo.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(repo.notifications))
	}
	n := repo.notifications[0]
	if n.userID != 4 || n.kind != "swap_request" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestCreateSwapRequest_NotificationFailureIgnored(t *testing.T) {
	repo := &stubRepo{
		swapResult: &repository.SwapRequestResult{
			TransactionID: 15,
			ReceiverID:    4,
			ReceiverTitle: "Denim Jacket",
		},
		notificationErr: errors.New("sink unavailable"),
	}
	svc := NewService(repo, nil)

	tid, err := svc.CreateSwapRequest(context.Background(), 1, 5, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tid != 15 {
		t.Fatalf("transaction id = %d, want 15", tid)
	}
}

func TestAcceptTransaction_WrongStatus(t *testing.T) {
	repo := &stubRepo{
		acceptErr: repository.ErrTransactionStatus,
	}
	svc := NewService(repo, nil)

	err := svc.AcceptTransaction(context.Background(), 3)
	if !errors.Is(err, repository.ErrTransactionStatus) {
		t.Fatalf("expected ErrTransactionStatus, got %v", err)
	}
	if len(repo.notifications) != 0 {
		t.Fatalf("no notifications expected, got %d", len(repo.notifications))
	}
}

func TestCompleteTransaction_NotifiesBothParties(t *testing.T) {
	repo := &stubRepo{
		completeResult: &repository.TransactionParties{
			ID:          3,
			Type:        model.TransactionTypeSwap,
			RequesterID: 1,
			ReceiverID:  2,
		},
	}
	svc := NewService(repo, nil)

	if err := svc.CompleteTransaction(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", len(repo.notifications))
	}
	if repo.notifications[0].userID != 1 || repo.notifications[1].userID != 2 {
		t.Fatalf("unexpected recipients: %+v", repo.notifications)
	}
}

func TestRejectTransaction_NotifiesRequester(t *testing.T) {
	repo := &stubRepo{
		rejectResult: &repository.TransactionParties{
			ID:          3,
			Type:        model.TransactionTypeRedemption,
			RequesterID: 1,
			ReceiverID:  2,
		},
	}
	svc := NewService(repo, nil)

	if err := svc.RejectTransaction(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(repo.notifications))
	}
	n := repo.notifications[0]
	if n.userID != 1 || n.kind != "transaction_rejected" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestGetBalance_ReturnsCachedBalanceDespiteMismatch(t *testing.T) {
	repo := &stubRepo{
		balance:   145,
		ledgerSum: 140,
	}
	svc := NewService(repo, nil)

	balance, err := svc.GetBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 145 {
		t.Fatalf("balance = %d, want 145", balance)
	}
}

func TestCreateFeedback_RatingValidation(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)

	for _, rating := range []int{0, -1, 6} {
		err := svc.CreateFeedback(context.Background(), 1, 3, rating, "")
		if !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
}

func TestCreateFeedback_NotParticipant(t *testing.T) {
	repo := &stubRepo{
		transaction: &model.Transaction{
			ID:          3,
			RequesterID: 1,
			ReceiverID:  2,
		},
	}
	svc := NewService(repo, nil)

	err := svc.CreateFeedback(context.Background(), 99, 3, 5, "great")
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestCreateFeedback_RevieweeIsOtherParty(t *testing.T) {
	repo := &stubRepo{
		transaction: &model.Transaction{
			ID:          3,
			RequesterID: 1,
			ReceiverID:  2,
		},
	}
	svc := NewService(repo, nil)

	if err := svc.CreateFeedback(context.Background(), 1, 3, 5, "great"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.feedbackReviewee != 2 {
		t.Fatalf("reviewee = %d, want 2", repo.feedbackReviewee)
	}

	if err := svc.CreateFeedback(context.Background(), 2, 3, 4, "good"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.feedbackReviewee != 1 {
		t.Fatalf("reviewee = %d, want 1", repo.feedbackReviewee)
	}
}
