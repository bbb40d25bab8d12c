package saga

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/metrics"
)

const (
	participantPayment  = "payment"
	participantApproval = "approval"
)

// HandlePaymentResponse применяет ответ сервиса оплаты.
// COMPLETED оплачивает заказ и запрашивает подтверждение ресторана,
// CANCELLED и FAILED отменяют заказ. Повторные доставки игнорируются.
func (c *Coordinator) HandlePaymentResponse(ctx context.Context, response domain.PaymentResponse) error {
	if err := response.Validate(); err != nil {
		return err
	}
	orderID, _ := domain.ParseOrderID(response.OrderID)

	unlock := c.locks.Lock(orderID.String())
	defer unlock()

	started := time.Now()
	step := domain.SagaStepPayment
	if response.PaymentStatus != domain.PaymentStatusCompleted {
		step = domain.SagaStepCancel
	}

	outcome, err := retryOnConflict(ctx, c.retry, c.logger, step, func(ctx context.Context) (string, error) {
		return c.applyPayment(ctx, orderID, response)
	})
	c.observe(participantPayment, step, outcome, err, started)
	return err
}

// HandleApprovalResponse применяет решение ресторана.
// APPROVED завершает сагу, REJECTED запускает возврат оплаты.
func (c *Coordinator) HandleApprovalResponse(ctx context.Context, response domain.RestaurantApprovalResponse) error {
	if err := response.Validate(); err != nil {
		return err
	}
	orderID, _ := domain.ParseOrderID(response.OrderID)

	unlock := c.locks.Lock(orderID.String())
	defer unlock()

	started := time.Now()
	step := domain.SagaStepApproval
	if response.OrderApprovalStatus == domain.OrderApprovalStatusRejected {
		step = domain.SagaStepCompensate
	}

	outcome, err := retryOnConflict(ctx, c.retry, c.logger, step, func(ctx context.Context) (string, error) {
		return c.applyApproval(ctx, orderID, response)
	})
	c.observe(participantApproval, step, outcome, err, started)
	return err
}

func (c *Coordinator) applyPayment(ctx context.Context, orderID domain.OrderID, response domain.PaymentResponse) (string, error) {
	order, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return metrics.OutcomeError, fmt.Errorf("load order for payment response: %w", err)
	}
	logger := c.responseLogger(order, response.ID, string(response.PaymentStatus))

	switch response.PaymentStatus {
	case domain.PaymentStatusCompleted:
		if order.Status() != domain.OrderStatusPending {
			logger.Debug("payment response already applied, skipping")
			return metrics.OutcomeDuplicate, nil
		}
		event, err := c.service.PayOrder(order)
		if err != nil {
			return metrics.OutcomeError, err
		}
		if err := c.saveWithEvent(ctx, order, event); err != nil {
			return metrics.OutcomeError, err
		}
		c.appendTimeline(ctx, order, TimelineOrderPaid, "", event.OccurredAt())
		logger.Info("order paid, approval requested")
		return metrics.OutcomeApplied, nil

	default:
		// Отказ в оплате приходит для PENDING, подтверждение возврата для CANCELLING.
		if order.Status() != domain.OrderStatusPending && order.Status() != domain.OrderStatusCancelling {
			logger.Debug("payment response does not match order status, skipping")
			return metrics.OutcomeDuplicate, nil
		}
		if err := c.service.CancelOrder(order, response.FailureMessages); err != nil {
			return metrics.OutcomeError, err
		}
		if err := c.saveWithEvent(ctx, order, nil); err != nil {
			return metrics.OutcomeError, err
		}
		c.appendTimeline(ctx, order, TimelineOrderCancelled, strings.Join(response.FailureMessages, "; "), c.clock.Now())
		if c.metrics != nil {
			c.metrics.RecordSagaCancelled(c.sagaAge(ctx, order.ID()))
		}
		logger.Info("order cancelled")
		return metrics.OutcomeRejected, nil
	}
}

func (c *Coordinator) applyApproval(ctx context.Context, orderID domain.OrderID, response domain.RestaurantApprovalResponse) (string, error) {
	order, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return metrics.OutcomeError, fmt.Errorf("load order for approval response: %w", err)
	}
	logger := c.responseLogger(order, response.ID, string(response.OrderApprovalStatus))

	if order.Status() != domain.OrderStatusPaid {
		logger.Debug("approval response does not match order status, skipping")
		return metrics.OutcomeDuplicate, nil
	}

	if response.OrderApprovalStatus == domain.OrderApprovalStatusApproved {
		if err := c.service.ApproveOrder(order); err != nil {
			return metrics.OutcomeError, err
		}
		if err := c.saveWithEvent(ctx, order, nil); err != nil {
			return metrics.OutcomeError, err
		}
		c.appendTimeline(ctx, order, TimelineOrderApproved, "", c.clock.Now())
		if c.metrics != nil {
			c.metrics.RecordSagaApproved(c.sagaAge(ctx, order.ID()))
		}
		logger.Info("order approved")
		return metrics.OutcomeApplied, nil
	}

	event, err := c.service.CancelOrderPayment(order, response.FailureMessages)
	if err != nil {
		return metrics.OutcomeError, err
	}
	if err := c.saveWithEvent(ctx, order, event); err != nil {
		return metrics.OutcomeError, err
	}
	c.appendTimeline(ctx, order, TimelineOrderCancelling, strings.Join(response.FailureMessages, "; "), event.OccurredAt())
	if c.metrics != nil {
		c.metrics.RecordCompensationStarted()
	}
	logger.Info("order rejected by restaurant, payment cancellation requested")
	return metrics.OutcomeRejected, nil
}

// saveWithEvent сохраняет заказ и, если событие есть, ставит его в outbox в той же транзакции.
func (c *Coordinator) saveWithEvent(ctx context.Context, order *domain.Order, event domain.OrderEvent) error {
	return c.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := c.orders.Save(ctx, order); err != nil {
			return fmt.Errorf("save order %s: %w", order.ID(), err)
		}
		if event == nil {
			return nil
		}
		return c.enqueue(ctx, event)
	})
}

func (c *Coordinator) responseLogger(order *domain.Order, responseID, status string) *log.Entry {
	return c.logger.WithFields(log.Fields{
		"order_id":        order.ID().String(),
		"order_status":    order.Status(),
		"response_id":     responseID,
		"response_status": status,
	})
}

func (c *Coordinator) observe(participant string, step domain.SagaStep, outcome string, err error, started time.Time) {
	if c.metrics == nil {
		return
	}
	if err != nil {
		outcome = metrics.OutcomeError
		c.metrics.RecordSagaFailed()
	}
	c.metrics.RecordResponse(participant, outcome)
	c.metrics.RecordStepDuration(string(step), time.Since(started))
}
