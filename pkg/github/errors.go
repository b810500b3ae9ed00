package github

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v68/github"

	"github.com/Useroth/MirrorCollapse/pkg/mirror"
)

// translateError maps a go-github error onto the mirror error taxonomy.
// resource names what was being read or written, e.g. "pull request #42".
func translateError(op, resource string, err error) error {
	if err == nil {
		return nil
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case http.StatusNotFound:
			return &mirror.NotFoundError{Resource: resource, Err: err}
		case http.StatusUnprocessableEntity:
			return newValidationError(errResp)
		}
	}

	return &mirror.TransportError{Op: op + " " + resource, Err: err}
}

func newValidationError(errResp *github.ErrorResponse) *mirror.ValidationError {
	ve := &mirror.ValidationError{Message: errResp.Message}
	for _, e := range errResp.Errors {
		switch {
		case e.Message != "":
			ve.Details = append(ve.Details, e.Message)
		case e.Field != "":
			ve.Details = append(ve.Details, e.Resource+"."+e.Field+": "+e.Code)
		case e.Code != "":
			ve.Details = append(ve.Details, e.Code)
		}
	}
	return ve
}

// IsRateLimitError returns true if err is a primary or secondary rate limit
// error from go-github.
func IsRateLimitError(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	return errors.As(err, &rateErr) || errors.As(err, &abuseErr)
}
