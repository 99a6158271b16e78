package hosttree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFailureDomain = errors.New("unknown failure domain")
)

// UnknownFailureDomainError is returned when none of the pending failure
// domain labels of an instance can be found below a host.
type UnknownFailureDomainError struct {
	Instance string
	Host     string
	Domains  []string
}

func (e *UnknownFailureDomainError) Error() string {
	return fmt.Sprintf("unknown failure domain [%s] for instance %s: no host under %s matches",
		strings.Join(e.Domains, ", "), e.Instance, e.Host)
}

func (e *UnknownFailureDomainError) Is(target error) bool {
	return target == ErrUnknownFailureDomain
}
