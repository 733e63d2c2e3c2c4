package notify

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"habitroom-backend/internal/mailer"
	"habitroom-backend/internal/metrics"
)

// DeliveryResult records what happened to one message.
type DeliveryResult struct {
	UserID  bson.ObjectID
	To      string
	Variant Variant
	Err     error
}

// Dispatch sends every message with at most limit deliveries in flight.
// Each send is its own failure boundary: an error or panic is recorded on
// that recipient's result and the rest carry on. There are no retries.
// Results are returned in message order.
func Dispatch(ctx context.Context, m mailer.Mailer, fromName string, msgs []Message, limit int, logger *zap.Logger) []DeliveryResult {
	if limit < 1 {
		limit = 1
	}
	results := make([]DeliveryResult, len(msgs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, msg := range msgs {
		g.Go(func() error {
			results[i] = deliverOne(ctx, m, fromName, msg, logger)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func deliverOne(ctx context.Context, m mailer.Mailer, fromName string, msg Message, logger *zap.Logger) (res DeliveryResult) {
	res = DeliveryResult{UserID: msg.UserID, To: msg.To, Variant: msg.Variant}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("delivery panicked: %v", r)
		}
		if res.Err != nil {
			metrics.EmailsFailed.WithLabelValues(string(msg.Variant)).Inc()
			logger.Warn("email delivery failed",
				zap.String("user_id", msg.UserID.Hex()),
				zap.String("variant", string(msg.Variant)),
				zap.Error(res.Err))
			return
		}
		metrics.EmailsSent.WithLabelValues(string(msg.Variant)).Inc()
	}()

	res.Err = m.Deliver(ctx, fromName, msg.To, msg.Subject, msg.HTML)
	return res
}
