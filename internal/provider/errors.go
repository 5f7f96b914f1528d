package provider

import "errors"

// ErrUnsupportedImageModel is returned for image/video model identifiers
// outside the closed media family set. Unknown chat models never error;
// they fall through to the Claude shape.
var ErrUnsupportedImageModel = errors.New("unsupported image model")
