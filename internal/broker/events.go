package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"sacolao-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher routes domain events to their topics: order lifecycle events
// on one producer, stock ledger events on another.
type EventPublisher struct {
	orders *Producer
	stock  *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(orders, stock *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, stock: stock}
}

// PublishOrderPlaced publishes an OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.orders.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCanceled publishes an OrderCanceled event
func (ep *EventPublisher) PublishOrderCanceled(ctx context.Context, event *models.OrderCanceledEvent) error {
	return ep.orders.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderStatus publishes an OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error {
	return ep.orders.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishStockAdjusted publishes a StockAdjusted event
func (ep *EventPublisher) PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	return ep.stock.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishStockShortage publishes a StockShortage event
func (ep *EventPublisher) PublishStockShortage(ctx context.Context, event *models.StockShortageEvent) error {
	return ep.stock.PublishEvent(ctx, productKey(event.ProductID), event)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}

func productKey(productID string) string {
	return fmt.Sprintf("product-%s", productID)
}

// EventHandler routes incoming messages to registered handlers
type EventHandler struct {
	onCounterOrder func(context.Context, *models.CounterOrderEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCounterOrder registers a handler for CounterOrder events
func (eh *EventHandler) OnCounterOrder(handler func(context.Context, *models.CounterOrderEvent) error) {
	eh.onCounterOrder = handler
}

// HandleMessage routes a message to the appropriate handler
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeCounterOrder:
		if eh.onCounterOrder != nil {
			var event models.CounterOrderEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CounterOrder event: %w", err)
			}
			return eh.onCounterOrder(ctx, &event)
		}
	}

	return nil
}
