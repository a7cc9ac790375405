package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
)

type cancelledParams struct {
	RequestId json.RawMessage `json:"requestId"`
	Reason    string          `json:"reason,omitempty"`
}

// Cancel handles notifications/cancelled by cancelling the referenced in-flight request
func (h *Handler) Cancel(ctx context.Context, notification *jsonrpc.Notification) *jsonrpc.Error {
	var params cancelledParams
	if err := json.Unmarshal(notification.Params, &params); err != nil {
		return jsonrpc.NewParsingError(fmt.Sprintf("failed to parse notification: %v", err), notification.Params)
	}
	if len(params.RequestId) == 0 || string(params.RequestId) == "null" {
		return jsonrpc.NewInvalidParamsError("invalid requestId", notification.Params)
	}
	if h.CancelOperation(params.RequestId) {
		h.logger.Debug("request cancelled", "requestId", string(params.RequestId), "reason", params.Reason)
	}
	return nil
}
