package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"shopfront/internal/domain"
	"shopfront/internal/repos"
	"shopfront/internal/validate"
)

// Line is one requested product on a new order.
type Line struct {
	ProductID string
	Quantity  int
}

type OrderService struct {
	Orders *repos.OrderRepo
	Items  *repos.OrderItemRepo
	Prods  *repos.ProductRepo
}

func NewOrderService(orders *repos.OrderRepo, items *repos.OrderItemRepo, prods *repos.ProductRepo) *OrderService {
	return &OrderService{Orders: orders, Items: items, Prods: prods}
}

// ItemView is an order line with its display label.
type ItemView struct {
	domain.OrderItem
	Label string `json:"label"`
}

// OrderView is an order header, its label and its lines.
type OrderView struct {
	domain.Order
	Label string     `json:"label"`
	Items []ItemView `json:"items"`
}

// mergeLines folds repeated products into one line by adding quantities,
// keeping first-seen order.
func mergeLines(lines []Line) []domain.OrderItem {
	idx := map[string]int{}
	var out []domain.OrderItem
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, domain.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

// Place records a purchase: the order header and its lines in one
// transaction. total is stored as given; it is not derived from the lines.
func (s *OrderService) Place(ctx context.Context, userID string, total decimal.Decimal, lines []Line) (OrderView, error) {
	if len(lines) == 0 {
		return OrderView{}, domain.Invalid("order", "items", "at least one line is required")
	}
	// Every requested line must stand on its own before duplicates are summed.
	for _, l := range lines {
		if err := validate.Quantity(l.Quantity); err != nil {
			return OrderView{}, err
		}
	}
	o, items, err := s.Orders.Place(ctx, domain.Order{UserID: userID, TotalPrice: total}, mergeLines(lines))
	if err != nil {
		return OrderView{}, err
	}
	return s.view(ctx, o, items)
}

func (s *OrderService) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	return s.Orders.Create(ctx, o)
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.Orders.Get(ctx, id)
}

func (s *OrderService) UpdateOrder(ctx context.Context, id string, p domain.OrderPatch) (domain.Order, error) {
	return s.Orders.Update(ctx, id, p)
}

func (s *OrderService) DeleteOrder(ctx context.Context, id string) (repos.Removed, error) {
	return s.Orders.Delete(ctx, id)
}

// Detail loads an order with its labelled lines.
func (s *OrderService) Detail(ctx context.Context, id string) (OrderView, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return OrderView{}, err
	}
	items, err := repos.Collect(s.Items.List(ctx, domain.OrderItemFilter{OrderID: id}))
	if err != nil {
		return OrderView{}, err
	}
	return s.view(ctx, o, items)
}

func (s *OrderService) view(ctx context.Context, o domain.Order, items []domain.OrderItem) (OrderView, error) {
	v := OrderView{Order: o, Label: o.String(), Items: make([]ItemView, 0, len(items))}
	for _, it := range items {
		label, err := s.ItemLabel(ctx, it)
		if err != nil {
			return OrderView{}, err
		}
		v.Items = append(v.Items, ItemView{OrderItem: it, Label: label})
	}
	return v, nil
}

// ItemLabel renders "<product name> x <quantity>".
func (s *OrderService) ItemLabel(ctx context.Context, it domain.OrderItem) (string, error) {
	p, err := s.Prods.Get(ctx, it.ProductID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s x %d", p.Name, it.Quantity), nil
}

// History lists a user's orders, newest first.
func (s *OrderService) History(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, error) {
	limit, offset := paging(page, pageSize)
	return repos.Collect(s.Orders.List(ctx, domain.OrderFilter{UserID: userID, NewestFirst: true, Limit: limit, Offset: offset}))
}

func (s *OrderService) AddItem(ctx context.Context, it domain.OrderItem) (domain.OrderItem, error) {
	return s.Items.Create(ctx, it)
}

func (s *OrderService) GetItem(ctx context.Context, id string) (domain.OrderItem, error) {
	return s.Items.Get(ctx, id)
}

func (s *OrderService) UpdateItem(ctx context.Context, id string, p domain.OrderItemPatch) (domain.OrderItem, error) {
	return s.Items.Update(ctx, id, p)
}

func (s *OrderService) DeleteItem(ctx context.Context, id string) (repos.Removed, error) {
	return s.Items.Delete(ctx, id)
}

func (s *OrderService) ListItems(ctx context.Context, f domain.OrderItemFilter) ([]domain.OrderItem, error) {
	return repos.Collect(s.Items.List(ctx, f))
}
