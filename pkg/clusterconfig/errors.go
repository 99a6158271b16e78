package clusterconfig

import "errors"

var (
	ErrConfig = errors.New("invalid cluster configuration")
)
