// Package otlived serves the indexing engine over line-delimited JSON-RPC
// 2.0 on TCP.
package otlived

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"otterlive/internal/errs"
	"otterlive/internal/logger"
	"otterlive/internal/version"
)

const DefaultListen = "127.0.0.1:7457"

type Options struct {
	Listen string
	Logger *slog.Logger
}

type Server struct {
	opts Options
	h    *Handlers
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listener  net.Listener
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

func NewServer(opts Options, engine Engine) *Server {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent("otlived")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:   opts,
		h:      NewHandlers(engine),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		conns:  map[net.Conn]struct{}{},
		closed: make(chan struct{}),
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run accepts connections until Close. It returns nil after Close.
func (s *Server) Run() error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}

	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("daemon listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		s.mu.Lock()
		if s.isClosed() {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

// Close stops accepting, drops open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}

	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()

		s.mu.Lock()
		ln := s.listener
		s.listener = nil
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()

		if ln != nil {
			err = ln.Close()
		}
		s.wg.Wait()
	})
	return err
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	defer func() { _ = w.Flush() }()

	for {
		line, err := ReadLine(r)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				_ = WriteLine(w, errorResponse(json.RawMessage("null"), CodeInvalidRequest, "request too large"))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = WriteLine(w, errorResponse(json.RawMessage("null"), CodeParseError, "parse error"))
			_ = w.Flush()
			continue
		}

		if len(req.ID) == 0 {
			// Notification: no response.
			_ = s.dispatch(req)
			continue
		}

		resp := s.dispatch(req)
		_ = WriteLine(w, resp)
		_ = w.Flush()
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		resp.Error = &ErrorObject{Code: CodeInvalidRequest, Message: "invalid jsonrpc version"}
		return resp
	}

	var (
		result any
		err    error
	)
	switch req.Method {
	case "ping":
		result = "pong"
	case "version":
		result = version.String()
	case "index.folder":
		var p PathParams
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = s.h.IndexFolder(p)
		}
	case "index.file":
		var p PathParams
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = s.h.IndexFile(p)
		}
	case "index.wait":
		var p WaitParams
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = s.h.Wait(s.ctx, p)
		}
	case "search":
		var p SearchParams
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = s.h.Search(p)
		}
	case "stats":
		result = s.h.Stats()
	default:
		resp.Error = &ErrorObject{Code: CodeMethodNotFound, Message: "method not found"}
		return resp
	}

	if err != nil {
		s.log.Debug("request failed", "method", req.Method, "error", err)
		resp.Error = toErrorObject(err)
		return resp
	}
	resp.Result = result
	return resp
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.E(errs.ErrInvalidArgument, "decode params", "", err)
	}
	return nil
}

func toErrorObject(err error) *ErrorObject {
	if errors.Is(err, errs.ErrInvalidArgument) {
		return &ErrorObject{Code: CodeInvalidParams, Message: err.Error()}
	}
	return &ErrorObject{Code: CodeServerError, Message: err.Error()}
}

func errorResponse(id json.RawMessage, code int, msg string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &ErrorObject{Code: code, Message: msg}}
}
