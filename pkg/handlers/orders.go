package handlers

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrOrderNotFound is returned by an OrderFinder when no order has the id.
var ErrOrderNotFound = errors.New("handlers: order not found")

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPlaced    OrderStatus = "placed"
	OrderShipped   OrderStatus = "shipped"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is the subset of the host application's orders row the handlers read.
type Order struct {
	ID             string      `gorm:"primaryKey;size:64"`
	Number         string      `gorm:"size:32;not null"`
	CustomerName   string      `gorm:"size:255"`
	CustomerEmail  string      `gorm:"size:255;not null"`
	Status         OrderStatus `gorm:"size:16;not null;index"`
	Carrier        string      `gorm:"size:64"`
	TrackingNumber string      `gorm:"size:128"`
	TotalCents     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName pins the table name regardless of the naming strategy.
func (Order) TableName() string {
	return "orders"
}

// OrderFinder loads orders by id.
type OrderFinder interface {
	FindOrder(ctx context.Context, id string) (*Order, error)
}

// GormOrderFinder reads the orders table.
type GormOrderFinder struct {
	db *gorm.DB
}

var _ OrderFinder = (*GormOrderFinder)(nil)

func NewGormOrderFinder(db *gorm.DB) *GormOrderFinder {
	return &GormOrderFinder{db: db}
}

// FindOrder returns ErrOrderNotFound when the row does not exist.
func (f *GormOrderFinder) FindOrder(ctx context.Context, id string) (*Order, error) {
	var order Order
	err := f.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
