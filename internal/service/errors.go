package service

import (
	"github.com/vedran77/pulse/pkg/apperrors"
)

var (
	ErrEmptyContent    = apperrors.InvalidArg("message content is required")
	ErrInvalidScope    = apperrors.InvalidArg("exactly one of channel_id or conversation_id is required")
	ErrParentNotFound  = apperrors.NotFound("parent message not found")
	ErrParentScope     = apperrors.InvalidArg("parent message belongs to a different channel or conversation")
	ErrMessageNotFound = apperrors.NotFound("message not found")
	ErrNotMessageOwner = apperrors.Forbidden("only the message author can perform this action")
	ErrMessageDeleted  = apperrors.FailedPrecondition("message has been deleted")
	ErrScopeGone       = apperrors.NotFound("message scope no longer exists")

	ErrChannelNotFound      = apperrors.NotFound("channel not found")
	ErrChannelArchived      = apperrors.FailedPrecondition("channel is archived")
	ErrConversationNotFound = apperrors.NotFound("conversation not found")
	ErrCannotResolveSelf    = apperrors.InvalidArg("cannot start a conversation with yourself")
	ErrUserNotFound         = apperrors.NotFound("user not found")

	ErrSettingKeyRequired = apperrors.InvalidArg("setting key is required")
	ErrInvalidScopeType   = apperrors.InvalidArg("scope_type must be global, organization or user")
	ErrScopeIDRequired    = apperrors.InvalidArg("scope_id is required for organization and user settings")
	ErrScopeIDForbidden   = apperrors.InvalidArg("global settings do not take a scope_id")
	ErrSettingNotFound    = apperrors.NotFound("setting not found")
)

func storageErr(op string, err error) error {
	return apperrors.Storage(op, err)
}

func invalidValue(err error) error {
	return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid setting value", err)
}
