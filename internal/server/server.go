// Package server drives the accept loops for the plaintext and TLS
// LDAP listeners and owns the published directory snapshot that every
// connection reads from.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/femtoldap/femtoldap/internal/assemble"
	"github.com/femtoldap/femtoldap/internal/directory"
	"github.com/femtoldap/femtoldap/internal/metrics"
	"github.com/femtoldap/femtoldap/internal/protocol"
	"github.com/femtoldap/femtoldap/pkg/config"
)

// Addresses configures which listeners to start. An empty bind address
// disables that listener.
type Addresses struct {
	LDAP        string
	LDAPS       string
	TLSCertFile string
	TLSKeyFile  string
}

// Server owns the accept loops and the published snapshot; Reload
// rebuilds the snapshot from config and publishes it atomically.
type Server struct {
	handle  *snapshotHandle
	metrics *metrics.Metrics
	version string

	ldapListener  net.Listener
	ldapsListener net.Listener
	tlsConfig     *tls.Config
}

// New opens the configured listeners (but does not start accepting
// connections; call Run for that).
func New(initial *directory.Snapshot, m *metrics.Metrics, addrs Addresses, version string) (*Server, error) {
	s := &Server{
		handle:  newSnapshotHandle(initial),
		metrics: m,
		version: version,
	}

	if addrs.LDAP != "" {
		ln, err := net.Listen("tcp", addrs.LDAP)
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", addrs.LDAP, err)
		}
		s.ldapListener = ln
	}

	if addrs.LDAPS != "" {
		if addrs.TLSCertFile == "" || addrs.TLSKeyFile == "" {
			return nil, fmt.Errorf("ldaps-bind-addr set without certificate/key file")
		}
		cert, err := tls.LoadX509KeyPair(addrs.TLSCertFile, addrs.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading TLS certificate: %w", err)
		}
		s.tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
		}
		ln, err := net.Listen("tcp", addrs.LDAPS)
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", addrs.LDAPS, err)
		}
		s.ldapsListener = ln
	}

	return s, nil
}

// Run accepts connections on every configured listener until ctx is
// canceled or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if s.ldapListener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.runListener(ctx, s.ldapListener, "LDAP", false); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}
	if s.ldapsListener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.runListener(ctx, s.ldapsListener, "LDAPS", true); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	wg.Wait()
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

type accepted struct {
	conn net.Conn
	err  error
}

// runListener multiplexes cancellation, snapshot publication, finished
// connections, and new accepts via a plain (unbiased) select: under
// this server's load none of these cases starve one another, so there
// is no need for an explicitly prioritized select.
func (s *Server) runListener(ctx context.Context, ln net.Listener, proto string, useTLS bool) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	acceptCh := make(chan accepted, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			acceptCh <- accepted{conn, err}
			if err != nil {
				return
			}
		}
	}()

	connDone := make(chan error, 16)

	for {
		select {
		case <-ctx.Done():
			ln.Close()
			return nil

		case <-s.handle.Watch():
			continue

		case err := <-connDone:
			if err != nil {
				slog.Error("connection error", "protocol", proto, "error", err)
			}

		case a := <-acceptCh:
			if a.err != nil {
				return fmt.Errorf("accept on %s: %w", proto, a.err)
			}
			s.metrics.IncConnection(proto)
			wg.Add(1)
			go func(conn net.Conn) {
				defer wg.Done()
				s.serveConn(ctx, conn, useTLS, connDone)
			}(a.conn)
		}
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, useTLS bool, connDone chan<- error) {
	if useTLS {
		tlsConn := tls.Server(conn, s.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			slog.Error("TLS handshake failed", "peer", conn.RemoteAddr(), "error", err)
			conn.Close()
			return
		}
		conn = tlsConn
	}
	c := protocol.NewConnection(conn, s.handle.Current, s.metrics)
	connDone <- c.Serve(ctx)
}

// Reload rebuilds the directory from configFile/configDir and publishes
// the new snapshot. On any error, including a panic from a duplicate
// DN, the previous snapshot stays published and the error is logged.
func (s *Server) Reload(configFile, configDir string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("reload panicked, keeping previous snapshot", "panic", r)
		}
	}()

	dir, err := config.Load(configFile, configDir)
	if err != nil {
		slog.Error("reload failed: loading config", "error", err)
		return
	}
	entries, err := assemble.Assemble(dir, s.version)
	if err != nil {
		slog.Error("reload failed: assembling directory", "error", err)
		return
	}
	snap := directory.NewSnapshot(entries)
	s.handle.Publish(snap)
	slog.Info("directory reloaded", "entries", len(entries))
}
