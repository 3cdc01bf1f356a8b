package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/printshop/jobqueue/pkg/core"
	"github.com/printshop/jobqueue/pkg/jobctx"
	"github.com/printshop/jobqueue/pkg/mail"
	"github.com/printshop/jobqueue/pkg/registry"
)

// Queue names. Collaborators enqueue against these.
const (
	OrderEmailQueue         = "OrderEmailJobHandler"
	ShipmentNoticeQueue     = "ShipmentNoticeJobHandler"
	CancellationNoticeQueue = "CancellationNoticeJobHandler"
)

// Registrations returns the three notification handlers with their queue
// configuration, ready for registry.New.
func Registrations(orders OrderFinder, sender mail.Sender) []registry.Registration {
	return []registry.Registration{
		{
			Handler: &OrderEmailHandler{Orders: orders, Mail: sender},
			Config: registry.Config{
				Priority:    10,
				Description: "Order confirmation email",
			},
		},
		{
			Handler: &ShipmentNoticeHandler{Orders: orders, Mail: sender},
			Config: registry.Config{
				Priority:    core.DefaultPriority,
				Description: "Shipment notice with tracking details",
			},
		},
		{
			Handler: &CancellationNoticeHandler{Orders: orders, Mail: sender},
			Config: registry.Config{
				Priority:    8,
				Description: "Order cancellation notice",
			},
		},
	}
}

// OrderEmailHandler confirms a placed order.
type OrderEmailHandler struct {
	Orders OrderFinder
	Mail   mail.Sender
}

func (*OrderEmailHandler) QueueName() string { return OrderEmailQueue }

func (h *OrderEmailHandler) Run(ctx context.Context, orderID string) error {
	order, err := loadOrder(ctx, h.Orders, orderID)
	if err != nil {
		return err
	}
	// A cancellation that raced ahead of the confirmation makes it pointless.
	if order.Status == OrderCancelled {
		return core.Permanent(fmt.Sprintf("order %s is cancelled", order.Number), nil)
	}

	return send(ctx, h.Mail, mail.Message{
		To:      order.CustomerEmail,
		Subject: fmt.Sprintf("We received your order %s", order.Number),
		TextBody: fmt.Sprintf("Hi %s,\n\nThanks for your order %s. Total: %s.\n",
			greetingName(order), order.Number, formatCents(order.TotalCents)),
		Tag: "order-email",
	})
}

// ShipmentNoticeHandler tells the customer their order has shipped.
type ShipmentNoticeHandler struct {
	Orders OrderFinder
	Mail   mail.Sender
}

func (*ShipmentNoticeHandler) QueueName() string { return ShipmentNoticeQueue }

func (h *ShipmentNoticeHandler) Run(ctx context.Context, orderID string) error {
	order, err := loadOrder(ctx, h.Orders, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderShipped {
		return core.Permanent(fmt.Sprintf("order %s is %s, not shipped", order.Number, order.Status), nil)
	}
	if order.TrackingNumber == "" {
		return core.Permanent(fmt.Sprintf("order %s has no tracking number", order.Number), nil)
	}

	return send(ctx, h.Mail, mail.Message{
		To:      order.CustomerEmail,
		Subject: fmt.Sprintf("Your order %s has shipped", order.Number),
		TextBody: fmt.Sprintf("Hi %s,\n\nYour order %s is on its way with %s. Tracking number: %s.\n",
			greetingName(order), order.Number, carrierName(order), order.TrackingNumber),
		Tag: "shipment-notice",
	})
}

// CancellationNoticeHandler confirms a cancellation.
type CancellationNoticeHandler struct {
	Orders OrderFinder
	Mail   mail.Sender
}

func (*CancellationNoticeHandler) QueueName() string { return CancellationNoticeQueue }

func (h *CancellationNoticeHandler) Run(ctx context.Context, orderID string) error {
	order, err := loadOrder(ctx, h.Orders, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderCancelled {
		return core.Permanent(fmt.Sprintf("order %s is %s, not cancelled", order.Number, order.Status), nil)
	}

	return send(ctx, h.Mail, mail.Message{
		To:       order.CustomerEmail,
		Subject:  fmt.Sprintf("Your order %s was cancelled", order.Number),
		TextBody: fmt.Sprintf("Hi %s,\n\nYour order %s has been cancelled.\n", greetingName(order), order.Number),
		Tag:      "cancellation-notice",
	})
}

func loadOrder(ctx context.Context, orders OrderFinder, id string) (*Order, error) {
	order, err := orders.FindOrder(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, core.Permanent(fmt.Sprintf("order %s not found", id), err)
	}
	if err != nil {
		return nil, core.Transient("load order", err)
	}
	return order, nil
}

func send(ctx context.Context, sender mail.Sender, msg mail.Message) error {
	if err := msg.Validate(); err != nil {
		return core.Permanent("invalid notification", err)
	}
	err := sender.Send(ctx, msg)
	if errors.Is(err, mail.ErrRejected) || errors.Is(err, mail.ErrInvalidMessage) {
		return core.Permanent("mail rejected", err)
	}
	if err != nil {
		return core.Transient("send mail", err)
	}
	jobctx.Logger(ctx).Info("notification sent", "tag", msg.Tag, "to", msg.To)
	return nil
}

func greetingName(o *Order) string {
	if o.CustomerName != "" {
		return o.CustomerName
	}
	return "there"
}

func carrierName(o *Order) string {
	if o.Carrier != "" {
		return o.Carrier
	}
	return "our carrier"
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}
