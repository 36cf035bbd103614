package router

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

// Outbound channel tags understood by the UI.
const (
	TagSteam       = "steam"
	TagLogWatcher  = "logWatcher"
	TagIsaac       = "isaac"
	TagAutoUpdater = "autoUpdater"
	TagHotkey      = "hotkey"
	TagWindow      = "window"
	TagSupervisor  = "supervisor"
)

// ChannelTag returns the UI channel a source's notifications travel on.
func ChannelTag(source domain.Source) string {
	switch source {
	case domain.SourceAuthHelper:
		return TagSteam
	case domain.SourceLogWatcher:
		return TagLogWatcher
	case domain.SourceLauncher:
		return TagIsaac
	}
	return TagSupervisor
}

// Outbound delivers coordinator notifications to the UI sink.
// Calls must come from the coordinator loop; the sink keeps them in order.
type Outbound struct {
	sink   domain.OutboundSink
	logger *zap.Logger
	now    func() time.Time
}

// NewOutbound creates an outbound router over sink.
func NewOutbound(sink domain.OutboundSink, logger *zap.Logger) *Outbound {
	return &Outbound{sink: sink, logger: logger.Named("outbound"), now: time.Now}
}

// Route delivers a worker or supervisor event on the source's channel.
func (o *Outbound) Route(source domain.Source, ev domain.Event) {
	o.Emit(source, ChannelTag(source), ev)
}

// Emit delivers ev on an explicit channel tag.
func (o *Outbound) Emit(source domain.Source, tag string, ev domain.Event) {
	event := ev
	msg := domain.Message{
		ID:        uuid.NewString(),
		Source:    source,
		Direction: domain.Outbound,
		Tag:       tag,
		Event:     &event,
		Time:      o.now(),
	}
	if ev.Type == domain.EventData {
		msg.Payload = ev.Data
	}
	o.logger.Debug("outbound",
		zap.String("source", string(source)),
		zap.String("tag", tag),
		zap.String("type", string(ev.Type)))
	o.sink.Deliver(msg)
}

// Notify sends a supervisor-originated value on tag.
func (o *Outbound) Notify(tag string, v any) {
	o.Emit(domain.SourceSupervisor, tag, domain.ValueEvent(v))
}

// Fail sends a supervisor-originated error on tag.
func (o *Outbound) Fail(tag string, err error) {
	o.Emit(domain.SourceSupervisor, tag, domain.ErrorEvent(err))
}
