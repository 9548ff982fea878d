package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultQuantity is the quantity of a freshly built order line.
const DefaultQuantity = 1

type Category struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

func (c Category) String() string { return c.Name }

type Product struct {
	ID          string          `db:"id" json:"id"`
	CategoryID  string          `db:"category_id" json:"category_id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Image       string          `db:"image" json:"image,omitempty"` // asset store key
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

func (p Product) String() string { return p.Name }

type UserProfile struct {
	ID          string `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"user_id"`
	PhoneNumber string `db:"phone_number" json:"phone_number"`
	Address     string `db:"address" json:"address"`
}

type Order struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
}

func (o Order) String() string {
	return fmt.Sprintf("Order #%s from %s", o.ID, o.CreatedAt.Format("2006-01-02"))
}

type OrderItem struct {
	ID        string `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	ProductID string `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
}

// NewOrderItem builds a line with the default quantity.
func NewOrderItem(orderID, productID string) OrderItem {
	return OrderItem{OrderID: orderID, ProductID: productID, Quantity: DefaultQuantity}
}

// ---------- Partial updates (nil = leave unchanged) ----------

type CategoryPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type ProductPatch struct {
	CategoryID  *string          `json:"category_id,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Image       *string          `json:"image,omitempty"`
}

type ProfilePatch struct {
	PhoneNumber *string `json:"phone_number,omitempty"`
	Address     *string `json:"address,omitempty"`
}

type OrderPatch struct {
	UserID     *string          `json:"user_id,omitempty"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
}

type OrderItemPatch struct {
	OrderID   *string `json:"order_id,omitempty"`
	ProductID *string `json:"product_id,omitempty"`
	Quantity  *int    `json:"quantity,omitempty"`
}

type UserPatch struct {
	Email   *string `json:"email,omitempty"`
	IsStaff *bool   `json:"is_staff,omitempty"`
}

// ---------- List filters ----------

type CategoryFilter struct {
	NameContains string
	Limit        int
	Offset       int
}

// ProductFilter.OrderBy accepts name, price, created_at, updated_at with an
// optional leading "-" for descending. Empty means id order.
type ProductFilter struct {
	CategoryID   string
	NameContains string
	OrderBy      string
	Limit        int
	Offset       int
}

type ProfileFilter struct {
	UserID string
}

type OrderFilter struct {
	UserID      string
	NewestFirst bool
	Limit       int
	Offset      int
}

type OrderItemFilter struct {
	OrderID   string
	ProductID string
}

type UserFilter struct {
	StaffOnly bool
}

type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	Hash      string    `db:"password_hash" json:"-"`
	IsStaff   bool      `db:"is_staff" json:"is_staff"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
