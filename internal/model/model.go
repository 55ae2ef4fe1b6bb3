// Package model содержит доменные сущности сервиса ReWear.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного пользователя платформы обмена одеждой.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	Role         Role
	Points       int64
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// ProductStatus описывает статус жизненного цикла товара.
type ProductStatus string

const (
	ProductStatusPending   ProductStatus = "pending"
	ProductStatusAvailable ProductStatus = "available"
	ProductStatusReserved  ProductStatus = "reserved"
	ProductStatusSwapped   ProductStatus = "swapped"
	ProductStatusRedeemed  ProductStatus = "redeemed"
)

// Product описывает выставленную на обмен вещь.
type Product struct {
	ID          int64
	OwnerID     int64
	Title       string
	Description string
	Category    string
	Subcategory string
	Size        string
	Condition   string
	PointValue  int64
	Status      ProductStatus
	IsFeatured  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductImage описывает изображение товара. Основным может быть только одно.
type ProductImage struct {
	ID        int64
	ProductID int64
	URL       string
	IsPrimary bool
	CreatedAt time.Time
}

// TransactionType описывает тип сделки: обмен или выкуп за баллы.
type TransactionType string

const (
	TransactionTypeSwap       TransactionType = "swap"
	TransactionTypeRedemption TransactionType = "redemption"
)

// TransactionStatus описывает статус обработки сделки.
type TransactionStatus string

const (
	TransactionStatusRequested TransactionStatus = "requested"
	TransactionStatusAccepted  TransactionStatus = "accepted"
	TransactionStatusRejected  TransactionStatus = "rejected"
	TransactionStatusCompleted TransactionStatus = "completed"
	// TransactionStatusCancelled зарезервирован: ни одна операция его пока не выставляет.
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Transaction описывает одну сделку между двумя пользователями.
// У выкупа RequesterProductID отсутствует.
type Transaction struct {
	ID                 int64
	Type               TransactionType
	RequesterID        int64
	ReceiverID         int64
	RequesterProductID *int64
	ReceiverProductID  int64
	PointsExchanged    int64
	Status             TransactionStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// PointKind описывает причину изменения баланса баллов.
type PointKind string

const (
	PointKindSignupBonus      PointKind = "signup_bonus"
	PointKindFirstLogin       PointKind = "first_login"
	PointKindItemListing      PointKind = "item_listing"
	PointKindItemApproved     PointKind = "item_approved"
	PointKindSwapFee          PointKind = "swap_fee"
	PointKindSwapFeeRefund    PointKind = "swap_fee_refund"
	PointKindSuccessfulSwap   PointKind = "successful_swap"
	PointKindRedeemItem       PointKind = "redeem_item"
	PointKindItemRedeemed     PointKind = "item_redeemed"
	PointKindRedemptionRefund PointKind = "redemption_refund"
	PointKindPositiveFeedback PointKind = "positive_feedback"
)

// PointTransaction описывает неизменяемую запись журнала начислений и списаний.
type PointTransaction struct {
	ID          int64
	UserID      int64
	Amount      int64
	Kind        PointKind
	ReferenceID *int64
	Description string
	CreatedAt   time.Time
}

// Feedback описывает отзыв по завершённой сделке: одна оценка на пару (сделка, автор).
type Feedback struct {
	ID            int64
	TransactionID int64
	ReviewerID    int64
	RevieweeID    int64
	Rating        int
	Comment       string
	CreatedAt     time.Time
}

// Rating содержит агрегированную оценку пользователя.
type Rating struct {
	Average float64 `json:"average_rating"`
	Total   int     `json:"total_reviews"`
}

// Notification описывает сообщение пользователю о событии в системе.
type Notification struct {
	ID          int64
	UserID      int64
	Message     string
	IsRead      bool
	Type        string
	ReferenceID *int64
	CreatedAt   time.Time
}
