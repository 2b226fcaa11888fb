package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/protocol"
)

// PeerStdio tags requests read by a Stdio transport.
const PeerStdio = "stdio"

// Stdio serves one UI over a pair of streams, one JSON message per line.
// Requests are dispatched concurrently so a resume waiting on a prompt
// reply does not block the reply itself.
type Stdio struct {
	reader *bufio.Reader
	writer io.Writer
	d      Dispatcher

	mu  sync.Mutex // serializes writes
	wg  sync.WaitGroup
	log *slog.Logger
}

// NewStdio creates a Stdio transport.
func NewStdio(r io.Reader, w io.Writer, d Dispatcher) *Stdio {
	return &Stdio{
		reader: bufio.NewReader(r),
		writer: w,
		d:      d,
		log:    logger.WithComponent("stdio"),
	}
}

// Run reads requests until EOF, then waits for in-flight requests to
// finish. Cancelling ctx cancels the requests but not the pending read.
func (s *Stdio) Run(ctx context.Context) error {
	s.log.Info("transport starting")
	defer s.wg.Wait()
	ctx = protocol.WithPeer(ctx, PeerStdio)

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			if err == io.EOF {
				s.log.Info("EOF received, shutting down")
				return nil
			}
			s.log.Error("read error", "error", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req protocol.Request
		if perr := json.Unmarshal([]byte(line), &req); perr != nil {
			s.log.Error("JSON parse error", "error", perr)
			s.send(parseError(perr))
		} else {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.d.Dispatch(ctx, &req, s.send)
			}()
		}

		if err == io.EOF {
			s.log.Info("EOF received, shutting down")
			return nil
		}
	}
}

func (s *Stdio) send(resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal response", "type", resp.Type, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		s.log.Error("failed to write response", "type", resp.Type, "error", err)
	}
}
