package httpErrors

import (
	"net/http"

	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	BadRequest          = "Bad request"
	NotFound            = "Not found"
	NotReady            = "Export not ready"
	InternalServerError = "Internal server error"
)

// RestErr is the body of every non-2xx JSON response.
type RestErr struct {
	ErrStatus int         `json:"status"`
	ErrError  string      `json:"error"`
	ErrCauses interface{} `json:"causes,omitempty"`
}

func (e *RestErr) Error() string {
	return e.ErrError
}

func (e *RestErr) Status() int {
	return e.ErrStatus
}

func NewRestError(status int, message string, causes interface{}) *RestErr {
	return &RestErr{ErrStatus: status, ErrError: message, ErrCauses: causes}
}

func NewBadRequestError(causes interface{}) *RestErr {
	return NewRestError(http.StatusBadRequest, BadRequest, causes)
}

// ParseErrors maps use case errors onto HTTP statuses. Anything unrecognized is
// a 500 and its text is not exposed.
func ParseErrors(err error) *RestErr {
	var (
		restErr  *RestErr
		inputErr *exports.InputError
	)
	switch {
	case errors.As(err, &restErr):
		return restErr
	case errors.As(err, &inputErr):
		if len(inputErr.Causes) == 0 {
			return NewBadRequestError(nil)
		}
		return NewBadRequestError(inputErr.Causes)
	case errors.Is(err, exports.ErrInvalidInput):
		return NewBadRequestError(nil)
	case errors.Is(err, exports.ErrNotFound):
		return NewRestError(http.StatusNotFound, NotFound, nil)
	case errors.Is(err, exports.ErrNotReady):
		return NewRestError(http.StatusConflict, NotReady, nil)
	default:
		return NewRestError(http.StatusInternalServerError, InternalServerError, nil)
	}
}

// ErrorResponse writes err as a RestErr JSON body.
func ErrorResponse(c echo.Context, err error) error {
	restErr := ParseErrors(err)
	return c.JSON(restErr.Status(), restErr)
}
