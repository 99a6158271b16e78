package failuredomain

import "errors"

var (
	ErrSpreading = errors.New("spreading error")
)
