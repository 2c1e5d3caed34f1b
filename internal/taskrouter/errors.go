package taskrouter

import (
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/fyrsmithlabs/contextd/pkg/taskerrors"
)

// toJSONRPCError maps a domain *taskerrors.TaskError onto the SDK's
// jsonrpc.Error. Non-TaskError failures are internal errors; they should
// not normally reach this function, since store/engine code is expected
// to always return typed errors.
func toJSONRPCError(err error) *jsonrpc.Error {
	te, ok := err.(*taskerrors.TaskError)
	if !ok {
		return &jsonrpc.Error{Code: taskerrors.CodeInternalError, Message: err.Error()}
	}
	return &jsonrpc.Error{Code: te.ErrorCode(), Message: te.Error()}
}
