package amp

import (
	"strings"
)

const (
	ProtocolIBC = "ibc"

	protocolSep = "://"
)

// AndrAddr is a recipient as written by a user: a raw address, a VFS path
// such as "/home/alice" or "~alice/app", or either of those prefixed with a
// protocol and chain, "ibc://osmosis/home/alice".
type AndrAddr string

func (a AndrAddr) String() string {
	return string(a)
}

// Protocol returns the protocol prefix, or "" for a local address.
func (a AndrAddr) Protocol() string {
	idx := strings.Index(string(a), protocolSep)
	if idx < 0 {
		return ""
	}
	return string(a)[:idx]
}

// Chain returns the chain segment following the protocol, or "".
func (a AndrAddr) Chain() string {
	rest, ok := a.afterProtocol()
	if !ok {
		return ""
	}
	chain, _, _ := strings.Cut(rest, "/")
	return chain
}

// RawPath strips the protocol and chain. A single remaining segment is a raw
// address and loses its leading slash; deeper paths stay VFS paths.
func (a AndrAddr) RawPath() string {
	rest, ok := a.afterProtocol()
	if !ok {
		return string(a)
	}
	_, path, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}
	if strings.Contains(path, "/") {
		return "/" + path
	}
	return path
}

// IsVFSPath reports whether the address must be resolved through the VFS.
func (a AndrAddr) IsVFSPath() bool {
	s := string(a)
	return strings.HasPrefix(s, "/") ||
		strings.HasPrefix(s, "./") ||
		strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "~")
}

// IsLocal reports whether the address targets currChain.
func (a AndrAddr) IsLocal(currChain string) bool {
	return a.Protocol() == "" || a.Chain() == currChain
}

// Local drops a protocol prefix that points at currChain itself.
func (a AndrAddr) Local(currChain string) AndrAddr {
	if a.Protocol() != "" && a.Chain() == currChain {
		return AndrAddr(a.RawPath())
	}
	return a
}

func (a AndrAddr) afterProtocol() (string, bool) {
	idx := strings.Index(string(a), protocolSep)
	if idx < 0 {
		return "", false
	}
	return string(a)[idx+len(protocolSep):], true
}
