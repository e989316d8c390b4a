package repository

import (
	"encoding/json"
	"time"

	"github.com/invitapp/guestlist-server/internal/models"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	minReconnectInterval = 5 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// ChangeListener subscribes to the guests NOTIFY channel and delivers
// decoded change events. After a dropped connection the underlying listener
// reconnects on its own; a synthetic event is emitted so consumers reload
// any state changed while the subscription was down.
type ChangeListener struct {
	pq      *pq.Listener
	events  chan models.ChangeEvent
	done    chan struct{}
	logger  *zap.Logger
	channel string
}

// NewChangeListener opens a dedicated listening connection and subscribes
// to the given channel. Call Close to unsubscribe and release it.
func NewChangeListener(dsn, channel string, logger *zap.Logger) (*ChangeListener, error) {
	l := &ChangeListener{
		events:  make(chan models.ChangeEvent, 16),
		done:    make(chan struct{}),
		logger:  logger,
		channel: channel,
	}

	l.pq = pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("listener connection event",
					zap.Int("event", int(event)), zap.Error(err))
			}
		})

	if err := l.pq.Listen(channel); err != nil {
		l.pq.Close()
		return nil, err
	}

	go l.run()
	return l, nil
}

// Events returns the stream of change events. The channel is closed by Close.
func (l *ChangeListener) Events() <-chan models.ChangeEvent {
	return l.events
}

func (l *ChangeListener) run() {
	defer close(l.events)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-l.done:
			return
		case notification := <-l.pq.Notify:
			if notification == nil {
				// Connection was re-established; whatever happened in
				// between was lost, so force a full reload.
				l.emit(models.ChangeEvent{Action: "RESYNC"})
				continue
			}

			var event models.ChangeEvent
			if err := json.Unmarshal([]byte(notification.Extra), &event); err != nil {
				l.logger.Warn("undecodable change notification",
					zap.String("payload", notification.Extra), zap.Error(err))
				event = models.ChangeEvent{Action: "RESYNC"}
			}
			l.emit(event)
		case <-ping.C:
			if err := l.pq.Ping(); err != nil {
				l.logger.Warn("listener ping failed", zap.Error(err))
			}
		}
	}
}

func (l *ChangeListener) emit(event models.ChangeEvent) {
	select {
	case l.events <- event:
	case <-l.done:
	}
}

// Close unsubscribes from the channel and closes the listening connection
func (l *ChangeListener) Close() error {
	close(l.done)
	if err := l.pq.Unlisten(l.channel); err != nil && err != pq.ErrChannelNotOpen {
		l.logger.Warn("unlisten failed", zap.Error(err))
	}
	return l.pq.Close()
}
