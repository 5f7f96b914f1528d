package chat

import "errors"

// ErrEmptyResponse is reported when a finished stream emitted no text and
// requested no tools.
var ErrEmptyResponse = errors.New("empty response from server")

// unauthorizedNotice is prepended to the final answer on a 401 response.
const unauthorizedNotice = "Unauthorized access. Please check your credentials."
