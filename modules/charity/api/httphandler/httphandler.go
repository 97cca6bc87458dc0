package httphandler

import (
	"github.com/standard-charity/indexer/modules/charity/usecase"
)

type HttpHandler struct {
	usecase *usecase.Usecase
}

func New(usecase *usecase.Usecase) *HttpHandler {
	return &HttpHandler{
		usecase: usecase,
	}
}

// HttpResponse is the response envelope of every endpoint; failures carry
// Ok=false and an error string instead of a payload.
type HttpResponse[T any] struct {
	Ok      bool    `json:"ok"`
	Payload *T      `json:"payload,omitempty"`
	Error   *string `json:"error"`
}

func ok[T any](payload T) HttpResponse[T] {
	return HttpResponse[T]{
		Ok:      true,
		Payload: &payload,
	}
}
