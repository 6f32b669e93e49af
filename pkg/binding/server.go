package binding

import (
	"context"
	"net"
	"sync"

	"github.com/golang/glog"

	fx "github.com/atspaeth/Neurobot/pkg/framework"
	"github.com/atspaeth/Neurobot/pkg/session"
)

// OpenFunc opens a session for a device path. Defaults to
// session.Open.
type OpenFunc func(path string) (*session.Session, error)

// Server exposes one control session to foreign callers. It either
// serves a pre-opened session or opens one on the first CodeOpen
// request.
type Server struct {
	Open OpenFunc

	mu   sync.Mutex
	sess *session.Session
}

// NewServer creates a Server. sess may be nil, in which case callers
// must issue an open request first.
func NewServer(sess *session.Session) *Server {
	return &Server{Open: session.Open, sess: sess}
}

// Session returns the currently served session.
func (s *Server) Session() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

// Serve accepts connections until the context is canceled. Each
// connection carries independent request/reply packet exchanges
// against the shared session.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	return fx.RunWithContextCloser(ctx, lis, func() error {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return err
			}
			glog.V(2).Infof("binding connection from %v", conn.RemoteAddr())
			go func() {
				defer conn.Close()
				s.ServeConn(ctx, NewStream(conn))
			}()
		}
	})
}

// ServeConn processes packets from one transport until it fails or
// the context is canceled.
func (s *Server) ServeConn(ctx context.Context, rw PacketReadWriter) {
	for ctx.Err() == nil {
		pkt, err := rw.ReadPacket()
		if err != nil {
			glog.V(2).Infof("binding read: %v", err)
			return
		}
		if err = rw.WritePacket(s.handle(pkt)); err != nil {
			glog.V(2).Infof("binding write: %v", err)
			return
		}
	}
}

func (s *Server) handle(pkt []byte) []byte {
	code, payload, err := ParseRequest(pkt)
	if err != nil {
		return Reply(code, KindBadRequest, []byte(err.Error()))
	}
	reply, err := s.dispatch(code, payload)
	if err != nil {
		return Reply(code, KindOf(err), []byte(err.Error()))
	}
	return Reply(code, KindOK, reply)
}

func (s *Server) dispatch(code byte, payload []byte) ([]byte, error) {
	if code == CodeOpen {
		return nil, s.open(string(payload))
	}
	sess := s.Session()
	if sess == nil {
		return nil, &CallError{Kind: KindNoSession, Message: "no open session"}
	}
	switch code {
	case CodeConfigure:
		conf, err := DecodeConfig(payload)
		if err != nil {
			return nil, &CallError{Kind: KindBadRequest, Message: err.Error()}
		}
		return nil, sess.Configure(conf)
	case CodeStart:
		return nil, sess.Start()
	case CodeRead:
		smp, err := sess.ReadLatest()
		if err != nil {
			return nil, err
		}
		if smp == nil {
			return nil, nil // empty payload: no sample yet
		}
		return EncodeSample(smp), nil
	case CodeWrite:
		cmd, err := DecodeCommand(payload)
		if err != nil {
			return nil, &CallError{Kind: KindBadRequest, Message: err.Error()}
		}
		return nil, sess.WriteCommand(cmd)
	case CodeStop:
		return nil, sess.Stop()
	case CodeClose:
		err := sess.Close()
		s.mu.Lock()
		s.sess = nil
		s.mu.Unlock()
		return nil, err
	case CodeState:
		return []byte{byte(sess.State())}, nil
	case CodeGetConfig:
		return EncodeConfig(sess.Config()), nil
	}
	return nil, &CallError{Kind: KindBadRequest, Message: "unknown request code"}
}

func (s *Server) open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil {
		// The mapping is a singleton; a second open is refused the
		// same way a second process would be.
		return &CallError{Kind: KindBusy, Message: "session already open"}
	}
	open := s.Open
	if open == nil {
		open = session.Open
	}
	sess, err := open(path)
	if err != nil {
		return err
	}
	s.sess = sess
	return nil
}
