package service

import (
	"context"

	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/kit/log"
)

// ChangePublisher fans committed row changes out to realtime subscribers
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev *entity.ChangeEvent)
}

// publishChange builds and publishes a change event. Failures are logged only:
// the write already committed and subscribers recover on their next reload.
func publishChange(ctx context.Context, pub ChangePublisher, topic, event string, record interface{}, columns map[string]string, audience []string) {
	if pub == nil {
		return
	}
	ev, err := entity.NewChangeEvent(topic, event, record, columns, audience)
	if err != nil {
		log.CtxError(ctx, "build change event failed: topic=%s, event=%s, error=%v", topic, event, err)
		return
	}
	pub.PublishChange(ctx, ev)
}
