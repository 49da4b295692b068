/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config describes the server/client endpoint configuration consumed
// by socket.Server: network family, address, TLS and (for listening
// endpoints) Unix-socket file ownership/permissions.
package config

import (
	"errors"
	"net"
	"runtime"

	libprm "github.com/nabbar/kitura-net/file/perm"
	libptc "github.com/nabbar/golib/network/protocol"
)

const MaxGID = 32767

var (
	ErrInvalidProtocol  = errors.New("socket/config: invalid protocol")
	ErrInvalidTLSConfig = errors.New("socket/config: invalid TLS config")
	ErrInvalidGroup     = errors.New("socket/config: invalid unix group")
)

// TLS is the minimal TLS-activation toggle carried by a config; the actual
// certificates.TLSConfig collaborator is wired in by the server package,
// never constructed here.
type TLS struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
}

// ServerTLS mirrors TLS but under the historical "Enable" field name used by
// the teacher's httpserver config, kept for the Server struct specifically.
type ServerTLS struct {
	Enable bool `mapstructure:"enable" json:"enable" yaml:"enable" toml:"enable"`
}

// Client describes an outbound-dial endpoint (used by httpcli and by the
// upgrade registry's websocket dial path).
type Client struct {
	Network libptc.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address string                 `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	TLS     TLS                    `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
}

// Validate checks network/address coherence; it deliberately does not
// require the address to resolve (DNS may not be ready at config-load time),
// except where the stdlib address parser itself rejects malformed input.
func (c Client) Validate() error {
	switch c.Network {
	case libptc.NetworkTCP, libptc.NetworkTCP4, libptc.NetworkTCP6:
		_, err := net.ResolveTCPAddr(c.Network.String(), c.Address)
		return err
	case libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6:
		_, err := net.ResolveUDPAddr(c.Network.String(), c.Address)
		return err
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		if runtime.GOOS == "windows" {
			return ErrInvalidProtocol
		}
		_, err := net.ResolveUnixAddr(c.Network.String(), c.Address)
		return err
	default:
		return ErrInvalidProtocol
	}
}

// Server describes a listening endpoint: network/address, optional Unix
// socket file permission/ownership, and TLS activation.
type Server struct {
	Network   libptc.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address   string                 `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	PermFile  libprm.Perm            `mapstructure:"permFile" json:"permFile" yaml:"permFile" toml:"permFile"`
	GroupPerm int32                  `mapstructure:"groupPerm" json:"groupPerm" yaml:"groupPerm" toml:"groupPerm"`
	TLS       ServerTLS              `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`

	// MaxConnections bounds admission control (0 = unlimited). See
	// socket.manager's admission policy.
	MaxConnections int64 `mapstructure:"maxConnections" json:"maxConnections" yaml:"maxConnections" toml:"maxConnections"`

	// AllowPortReuse maps to SO_REUSEPORT-style rebind semantics.
	AllowPortReuse bool `mapstructure:"allowPortReuse" json:"allowPortReuse" yaml:"allowPortReuse" toml:"allowPortReuse"`
}

func (s Server) Validate() error {
	if s.GroupPerm < 0 || s.GroupPerm > MaxGID {
		return ErrInvalidGroup
	}

	switch s.Network {
	case libptc.NetworkTCP, libptc.NetworkTCP4, libptc.NetworkTCP6:
		_, err := net.ResolveTCPAddr(s.Network.String(), s.Address)
		return err
	case libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6:
		_, err := net.ResolveUDPAddr(s.Network.String(), s.Address)
		return err
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		if runtime.GOOS == "windows" {
			return ErrInvalidProtocol
		}
		_, err := net.ResolveUnixAddr(s.Network.String(), s.Address)
		return err
	default:
		return ErrInvalidProtocol
	}
}

// IsUnix reports whether the endpoint is a filesystem-backed Unix socket,
// which is the only family PermFile/GroupPerm apply to.
func (s Server) IsUnix() bool {
	return s.Network == libptc.NetworkUnix || s.Network == libptc.NetworkUnixGram
}
