package netio

import (
	rs "github.com/Clouded-Sabre/rawsocket/lib"
)

// RawSocketCore owns the process-wide raw socket handle that a real
// LinkDriver implementation is built on top of. The router core never
// touches it directly; it is constructed once at start-up and handed to
// whichever LinkDriver talks to the wire, so only one raw socket exists
// per process.
type RawSocketCore struct {
	core rs.RSCore
}

// NewRawSocketCore opens the shared raw socket handle. Passing a nil cfg
// uses rs.NewDefaultRsConfig().
func NewRawSocketCore(cfg *rs.RsConfig) (*RawSocketCore, error) {
	if cfg == nil {
		cfg = rs.NewDefaultRsConfig()
	}
	core, err := rs.NewRSCore(cfg)
	if err != nil {
		return nil, err
	}
	return &RawSocketCore{core: core}, nil
}

// Close releases the raw socket handle.
func (r *RawSocketCore) Close() error {
	return r.core.Close()
}
