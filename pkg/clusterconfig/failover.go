package clusterconfig

import (
	"net"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type FailoverMode string

const (
	FailoverDisabled FailoverMode = "disabled"
	FailoverEventual FailoverMode = "eventual"
	FailoverStateful FailoverMode = "stateful"
)

type StateProvider string

const (
	StateProviderStateboard StateProvider = "stateboard"
	StateProviderEtcd2      StateProvider = "etcd2"
)

type StateboardParams struct {
	URI      string `yaml:"uri" json:"uri"`
	Password string `yaml:"password" json:"password"`
}

type Etcd2Params struct {
	Prefix    string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	LockDelay *uint    `yaml:"lock_delay,omitempty" json:"lock_delay,omitempty"`
	Endpoints []string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
	Username  string   `yaml:"username,omitempty" json:"username,omitempty"`
	Password  string   `yaml:"password,omitempty" json:"password,omitempty"`
}

// Failover is passed through to the inventory.  A stateful failover backed
// by a stateboard also adds a stateboard instance to the placement.
type Failover struct {
	Mode             FailoverMode      `yaml:"mode" json:"mode"`
	StateProvider    StateProvider     `yaml:"state_provider,omitempty" json:"state_provider,omitempty"`
	StateboardParams *StateboardParams `yaml:"stateboard_params,omitempty" json:"stateboard_params,omitempty"`
	Etcd2Params      *Etcd2Params      `yaml:"etcd2_params,omitempty" json:"etcd2_params,omitempty"`
	FailoverTimeout  *uint             `yaml:"failover_timeout,omitempty" json:"failover_timeout,omitempty"`
}

// UsesStateboard reports whether a stateboard instance has to be placed.
func (f *Failover) UsesStateboard() bool {
	return f != nil && f.Mode == FailoverStateful && f.StateProvider == StateProviderStateboard
}

// StateboardHost returns the host part of the stateboard URI.
func (f *Failover) StateboardHost() (string, error) {
	if f.StateboardParams == nil {
		return "", configErrorf("failover: stateboard_params are required")
	}

	host, _, err := net.SplitHostPort(f.StateboardParams.URI)
	if err != nil {
		return "", configErrorf("failover: stateboard uri %q: %s", f.StateboardParams.URI, err)
	}
	return host, nil
}

func (f *Failover) validate() error {
	var errs error

	switch f.Mode {
	case FailoverDisabled, FailoverEventual:
		return nil
	case FailoverStateful:
	default:
		return configErrorf("failover: unknown mode %q", f.Mode)
	}

	switch f.StateProvider {
	case StateProviderStateboard:
		if f.StateboardParams == nil {
			errs = multierr.Append(errs, configErrorf("failover: stateboard_params are required"))
			break
		}
		if _, err := f.StateboardHost(); err != nil {
			errs = multierr.Append(errs, err)
		}
		if f.StateboardParams.Password == "" {
			errs = multierr.Append(errs, configErrorf("failover: stateboard password is required"))
		}
	case StateProviderEtcd2:
		if f.Etcd2Params == nil {
			errs = multierr.Append(errs, configErrorf("failover: etcd2_params are required"))
		}
	case "":
		errs = multierr.Append(errs, configErrorf("failover: state_provider is required for stateful mode"))
	default:
		errs = multierr.Append(errs, configErrorf("failover: unknown state provider %q", f.StateProvider))
	}

	return errs
}

func configErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrConfig, format, args...)
}
