package hosttree

import (
	"encoding/json"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation"
)

type AddressKind int

const (
	AddressNone AddressKind = iota
	AddressIP
	AddressHostname
)

// Address is either unset, an IP address or a DNS hostname.  Scalars are
// resolved in that order: empty is None, anything netip accepts is an IP,
// and everything else must be a valid RFC 1123 hostname.
type Address struct {
	kind     AddressKind
	ip       netip.Addr
	hostname string
}

func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, nil
	}

	if ip, err := netip.ParseAddr(s); err == nil {
		return Address{kind: AddressIP, ip: ip}, nil
	}

	if errs := validation.IsDNS1123Subdomain(s); len(errs) > 0 {
		return Address{}, errors.Errorf("invalid address %q: %s", s, strings.Join(errs, ", "))
	}

	return Address{kind: AddressHostname, hostname: s}, nil
}

func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) Kind() AddressKind {
	return a.kind
}

func (a Address) IsZero() bool {
	return a.kind == AddressNone
}

func (a Address) String() string {
	switch a.kind {
	case AddressIP:
		return a.ip.String()
	case AddressHostname:
		return a.hostname
	}
	return ""
}

func (a Address) Equal(o Address) bool {
	return a.kind == o.kind && a.String() == o.String()
}

func (a *Address) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: address must be a scalar", value.Line)
	}

	addr, err := ParseAddress(value.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}

	*a = addr
	return nil
}

func (a Address) MarshalYAML() (any, error) {
	if a.IsZero() {
		return nil, nil
	}
	return a.String(), nil
}

func (a Address) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "failed to parse address")
	}
	if s == nil {
		*a = Address{}
		return nil
	}

	addr, err := ParseAddress(*s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
