package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mwantia/gophotos/internal/photos"
	"github.com/mwantia/gophotos/pkg/remote"
)

// Response is the envelope of every API reply.
type Response struct {
	Code  int    `json:"code"`
	Data  any    `json:"data,omitempty"`
	Msg   string `json:"msg"`
	Error string `json:"error,omitempty"`
}

const (
	CodeOK          = 0
	CodeNotFound    = 404
	CodeConflict    = 409
	CodeParamErr    = 40001
	CodeSyncFailed  = 50001
	CodeRemoteError = 50002
	CodeInternal    = 50005
)

func OK(data any) Response {
	return Response{Code: CodeOK, Data: data}
}

func ParamErr(msg string, err error) Response {
	if msg == "" {
		msg = "Invalid parameters"
	}
	return Err(CodeParamErr, msg, err)
}

// Err hides the underlying error in release mode.
func Err(code int, msg string, err error) Response {
	res := Response{
		Code: code,
		Msg:  msg,
	}
	if err != nil && gin.Mode() != gin.ReleaseMode {
		res.Error = err.Error()
	}
	return res
}

// FromError maps domain errors to response codes.
func FromError(msg string, err error) Response {
	var status *remote.StatusError

	switch {
	case errors.Is(err, photos.ErrPhotoNotFound), errors.Is(err, remote.ErrNotFound):
		return Err(CodeNotFound, "Photo not found", err)
	case errors.Is(err, remote.ErrVersionConflict):
		return Err(CodeConflict, "Photo was modified concurrently", err)
	case errors.As(err, &status):
		return Err(CodeRemoteError, msg, err)
	}
	return Err(CodeInternal, msg, err)
}
