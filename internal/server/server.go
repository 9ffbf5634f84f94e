// Package server implements the acceptor loop: bind the configured address,
// accept connections, and for each one submit a job to the pool that reads
// one request, invokes the engine, and writes the response. The loop itself
// depends only on engine.Engine and pool.Pool, never on a concrete engine
// realization, so swapping the built-in log-structured engine for the bbolt
// one requires no change here.
package server

import (
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/lighkLife/kvs/internal/engine"
	"github.com/lighkLife/kvs/internal/pool"
	"github.com/lighkLife/kvs/internal/wire"
)

// Server owns the listener, the shared engine handle, and the worker pool.
type Server struct {
	ln   net.Listener
	eng  engine.Engine
	pool *pool.Pool
	log  *zap.Logger
}

// New wraps an already-bound listener, an engine handle, and a pool into a
// Server ready to Serve.
func New(ln net.Listener, eng engine.Engine, p *pool.Pool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{ln: ln, eng: eng, pool: p, log: logger}
}

// Serve accepts connections until the listener is closed (the cooperative
// shutdown signal: closing ln causes Accept to return an error and Serve to
// return nil). Each accepted connection is handled inside a pool job.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("accept failed", zap.Error(err))
			return err
		}
		s.pool.Spawn(func() {
			s.handleConn(conn)
		})
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := wire.ReadRequest(conn)
	if err != nil {
		// A framing error closes the connection without a reply.
		s.log.Warn("protocol error reading request", zap.Error(err), zap.String("remote", conn.RemoteAddr().String()))
		return
	}

	resp := s.dispatch(req)

	if err := wire.WriteResponse(conn, resp); err != nil {
		s.log.Warn("error writing response", zap.Error(err), zap.String("remote", conn.RemoteAddr().String()))
	}
}

func (s *Server) dispatch(req wire.Request) wire.Response {
	switch req.Kind {
	case wire.KindGet:
		value, found, err := s.eng.Get(req.Key)
		if err != nil {
			s.log.Error("engine get failed", zap.Error(err), zap.String("key", req.Key))
			return wire.Response{Status: wire.StatusErr, Message: err.Error()}
		}
		if !found {
			return wire.Response{Status: wire.StatusNotFound}
		}
		return wire.Response{Status: wire.StatusFound, Value: value}

	case wire.KindSet:
		if err := s.eng.Set(req.Key, req.Value); err != nil {
			s.log.Error("engine set failed", zap.Error(err), zap.String("key", req.Key))
			return wire.Response{Status: wire.StatusErr, Message: err.Error()}
		}
		return wire.Response{Status: wire.StatusOK}

	case wire.KindRemove:
		if err := s.eng.Remove(req.Key); err != nil {
			if engine.KindOf(err) != engine.ErrKindKeyNotFound {
				s.log.Error("engine remove failed", zap.Error(err), zap.String("key", req.Key))
			}
			return wire.Response{Status: wire.StatusErr, Message: err.Error()}
		}
		return wire.Response{Status: wire.StatusOK}

	default:
		return wire.Response{Status: wire.StatusErr, Message: "unknown request kind"}
	}
}
