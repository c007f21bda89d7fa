package messaging

import "errors"

var ErrTaskIDRequired = errors.New("task id is required")
