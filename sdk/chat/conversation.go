package chat

import (
	"context"
	"fmt"

	"github.com/mbeoliero/hearth/sdk"
	"github.com/mbeoliero/kit/log"
)

// StartOrGetConversation returns the conversation between me and other,
// creating it when none exists. The store enforces one conversation per pair,
// so a concurrent start from another device still yields a single row.
func StartOrGetConversation(ctx context.Context, store RecordStore, me, other string, opts ...Option) (*sdk.Conversation, error) {
	if me == "" || other == "" {
		return nil, ErrInvalidUser
	}
	if me == other {
		return nil, ErrSelfConversation
	}
	o := newOptions(opts)

	fctx, cancel := o.bound(ctx)
	conv, err := store.FindConversation(fctx, other)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv != nil {
		return conv, nil
	}

	cctx, cancel := o.bound(ctx)
	defer cancel()
	conv, err = store.CreateConversation(cctx, other)
	if err != nil {
		if sdk.CodeOf(err) == sdk.CodeSelfConversation {
			return nil, ErrSelfConversation
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	log.CtxInfo(ctx, "conversation ready: conversation_id=%s, other_user_id=%s", conv.Id, other)
	return conv, nil
}
