package gateway

import (
	"context"

	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/mbeoliero/hearth/pkg/errcode"
)

// ParticipantChecker reports whether a user takes part in a conversation
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, userId, conversationId string) (bool, error)
}

// topicColumns lists the filterable columns per topic
var topicColumns = map[string]map[string]bool{
	constant.TopicConversations: {"id": true, constant.ColumnParticipant1: true, constant.ColumnParticipant2: true},
	constant.TopicMessages:      {"id": true, constant.ColumnConversationId: true, constant.ColumnSenderId: true},
}

// Subscription is one logical channel opened by a connection
type Subscription struct {
	ChannelId string
	Topic     string
	events    map[string]bool
	filter    []FilterClause
}

// NewSubscription validates req and builds the channel it describes
func NewSubscription(req *SubscribeReq) (*Subscription, error) {
	if req.ChannelId == "" {
		return nil, errcode.ErrInvalidParam
	}
	columns, ok := topicColumns[req.Topic]
	if !ok {
		return nil, errcode.ErrInvalidTopic
	}

	events := make(map[string]bool, len(req.Events))
	for _, ev := range req.Events {
		switch ev {
		case constant.EventInsert, constant.EventUpdate, constant.EventDelete, constant.EventAny:
			events[ev] = true
		default:
			return nil, errcode.ErrInvalidEvent
		}
	}
	if len(events) == 0 {
		events[constant.EventAny] = true
	}

	for _, clause := range req.Filter {
		if !columns[clause.Column] || clause.Value == "" {
			return nil, errcode.ErrInvalidFilter
		}
	}

	return &Subscription{
		ChannelId: req.ChannelId,
		Topic:     req.Topic,
		events:    events,
		filter:    req.Filter,
	}, nil
}

// Authorize checks the filter only names rows userId may observe: participant
// columns must name the user and conversation filters must name one of their conversations.
func (s *Subscription) Authorize(ctx context.Context, userId string, checker ParticipantChecker) error {
	for _, clause := range s.filter {
		switch clause.Column {
		case constant.ColumnParticipant1, constant.ColumnParticipant2:
			if clause.Value != userId {
				return errcode.ErrNoPermission
			}
		case constant.ColumnConversationId:
			if checker == nil {
				continue
			}
			ok, err := checker.IsParticipant(ctx, userId, clause.Value)
			if err != nil {
				return errcode.ErrInternalServer
			}
			if !ok {
				return errcode.ErrNoPermission
			}
		}
	}
	return nil
}

// Matches reports whether ev belongs on this channel
func (s *Subscription) Matches(ev *entity.ChangeEvent) bool {
	if ev.Topic != s.Topic {
		return false
	}
	if !s.events[constant.EventAny] && !s.events[ev.Event] {
		return false
	}
	if len(s.filter) == 0 {
		return true
	}
	for _, clause := range s.filter {
		if ev.Columns[clause.Column] == clause.Value {
			return true
		}
	}
	return false
}
