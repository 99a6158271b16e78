package topologyset

import "errors"

var (
	ErrReplicasetNamesNotUnique = errors.New("Replicaset names must be unique")
)
