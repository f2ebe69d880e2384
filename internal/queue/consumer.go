package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Handler processes one confirmed booking.
type Handler func(ctx context.Context, ev BookingConfirmedEvent) error

// StartBookingConsumer connects to RabbitMQ, declares the booking.confirmed
// queue (durable), and hands each message to handle.  It runs a reconnect
// loop with exponential backoff and returns only when ctx is cancelled.
// A message that fails to process is rejected without requeue so a
// poison message cannot spin the consumer.
func StartBookingConsumer(ctx context.Context, url string, handle Handler, log *zap.Logger) error {
    if log == nil {
        log = zap.NewNop()
    }
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Warn("booking-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, handle, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("booking-consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, handle Handler, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("booking-consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(BookingConfirmedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(ctx, d.Body, handle); err != nil {
                log.Error("booking-consumer: handle message failed", zap.Error(err))
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(ctx context.Context, body []byte, handle Handler) error {
    var ev BookingConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    return handle(ctx, ev)
}

// LogFileHandler appends one human readable line per booking to
// <dir>/booking.log.
func LogFileHandler(dir string) Handler {
    var mu sync.Mutex
    return func(_ context.Context, ev BookingConfirmedEvent) error {
        mu.Lock()
        defer mu.Unlock()
        if err := os.MkdirAll(dir, 0o755); err != nil {
            return fmt.Errorf("mkdir logs: %w", err)
        }
        f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
        if err != nil {
            return fmt.Errorf("open log file: %w", err)
        }
        defer f.Close()
        if _, err := f.WriteString(formatLine(ev)); err != nil {
            return fmt.Errorf("write log: %w", err)
        }
        return nil
    }
}

func formatLine(ev BookingConfirmedEvent) string {
    return fmt.Sprintf("[%s] Booking confirmed | ticket=%s | user_id=%s | showtime_id=%d | cinema=%q | screen=%d | movie=%q | total=%d cents | seats=[%s]\n",
        ev.ConfirmedAt, ev.TicketCode, ev.UserID, ev.ShowtimeID, ev.CinemaName, ev.ScreenNumber, ev.MovieTitle, ev.TotalAmountCents, strings.Join(ev.Seats, ","))
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
