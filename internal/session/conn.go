package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/programme-lv/judgehost/api"
)

// frames are newline-delimited JSON; tasks with inlined sources can be
// large, hence the generous scanner ceiling
const (
	scanInitialBuf = 64 * 1024
	scanMaxBuf     = 16 * 1024 * 1024
)

var errConnDown = errors.New("control connection is down")

var pongLiteral = []byte(`"pong"`)

// connectOnce dials, performs the handshake and serves the read loop
// until the connection fails or ctx is done
func (s *Session) connectOnce(ctx context.Context) error {
	s.setState(Connecting)

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to dial judge server: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()
	}()

	// unblocks the blocked scanner read when ctx ends
	conCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-conCtx.Done()
		conn.Close()
	}()

	s.setState(Handshaking)
	if err := s.handshake(); err != nil {
		return err
	}

	var hbOnce sync.Once

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, scanInitialBuf), scanMaxBuf)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		frame, err := api.DecodeFrame(line)
		if err != nil {
			s.logger.Warn("dropping undecodable frame", slog.Any("error", err))
			continue
		}

		// control ping: answer immediately, nothing is queued
		if frame.Ping {
			if err := s.sendRaw(pongLiteral); err != nil {
				return err
			}
			continue
		}

		if frame.Language != nil {
			s.setState(Active)
			s.logger.Info("judge session active",
				slog.Int("languages", len(frame.Language)))
			if s.cfg.Probe != nil {
				// probing must not block task intake
				go s.probeCompilers(conCtx, frame.Language)
			}
			if !s.cfg.DisableStatus {
				hbOnce.Do(func() { go s.heartbeatLoop(conCtx) })
			}
		}

		if frame.Task != nil {
			if s.State() != Active {
				s.logger.Warn("task announced before language table",
					slog.String("rid", frame.Task.RID))
			}
			task := frame.Task
			// tasks run on the session ctx: once dispatched they run
			// to completion even if this connection drops
			if err := s.pool.Submit(ctx, func() { s.handleTask(ctx, task) }); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("control connection failed: %w", err)
	}
	return errors.New("control connection closed by server")
}

// handshake announces capabilities (or a plain keep-alive when no
// overrides are configured) followed by the start signal
func (s *Session) handshake() error {
	if s.cfg.Prio != nil || s.cfg.Concurrency != nil || len(s.cfg.Langs) > 0 {
		if err := s.Send(api.NewConfig(s.cfg.Prio, s.cfg.Concurrency, s.cfg.Langs)); err != nil {
			return err
		}
	} else {
		if err := s.Send(api.NewPing()); err != nil {
			return err
		}
	}
	return s.Send(api.NewStart())
}

// Send frames msg as one JSON line on the control socket. Safe for
// concurrent use; workers and the heartbeat share the channel.
func (s *Session) Send(msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}
	if s.echo != nil {
		_ = s.echo.Send(msg)
	}
	return s.sendRaw(b)
}

func (s *Session) sendRaw(b []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return errConnDown
	}
	if _, err := s.conn.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
