package response

import (
	"net/http"

	"github.com/go-chi/render"
)

// Envelope wraps successful bodies as {"data": ...}.
type Envelope struct {
	Data any `json:"data,omitempty"`
}

// Problem describes a rejected request. It is always sent nested under
// "error" so clients can branch on the top-level key.
type Problem struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type ErrorBody struct {
	Error Problem `json:"error"`
}

func Data(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{Data: payload})
}

func Fail(w http.ResponseWriter, r *http.Request, status int, p Problem) {
	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: p})
}
