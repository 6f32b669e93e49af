package binding

import (
	"net"
	"sync"

	"github.com/atspaeth/Neurobot/pkg/drive"
	"github.com/atspaeth/Neurobot/pkg/session"
)

// Client mirrors the control session operations for out-of-process
// callers. Calls are synchronous request/reply exchanges; the client
// serializes them, so one Client is safe for concurrent use.
type Client struct {
	mu sync.Mutex
	rw PacketReadWriter
}

// NewClient wraps a packet transport.
func NewClient(rw PacketReadWriter) *Client {
	return &Client{rw: rw}
}

// Dial connects to a binding server over a unix socket.
func Dial(socketPath string) (*Client, net.Conn, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(NewStream(conn)), conn, nil
}

func (c *Client) call(code byte, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.rw.WritePacket(Request(code, payload)); err != nil {
		return nil, err
	}
	pkt, err := c.rw.ReadPacket()
	if err != nil {
		return nil, err
	}
	return ParseReply(pkt, code)
}

// Open opens the device on the server side.
func (c *Client) Open(path string) error {
	_, err := c.call(CodeOpen, []byte(path))
	return err
}

// Configure applies a channel configuration.
func (c *Client) Configure(conf drive.ChannelConfig) error {
	_, err := c.call(CodeConfigure, EncodeConfig(conf))
	return err
}

// Start arms the control loop.
func (c *Client) Start() error {
	_, err := c.call(CodeStart, nil)
	return err
}

// ReadLatest returns the most recent sample, or nil if none was
// produced yet.
func (c *Client) ReadLatest() (*drive.Sample, error) {
	payload, err := c.call(CodeRead, nil)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	return DecodeSample(payload)
}

// WriteCommand sends actuator setpoints.
func (c *Client) WriteCommand(cmd drive.Command) error {
	_, err := c.call(CodeWrite, EncodeCommand(cmd))
	return err
}

// Stop stops the control loop.
func (c *Client) Stop() error {
	_, err := c.call(CodeStop, nil)
	return err
}

// Close closes the server-side session. The transport stays usable
// for a subsequent Open.
func (c *Client) Close() error {
	_, err := c.call(CodeClose, nil)
	return err
}

// State queries the session state.
func (c *Client) State() (session.State, error) {
	payload, err := c.call(CodeState, nil)
	if err != nil {
		return session.Closed, err
	}
	if len(payload) != 1 {
		return session.Closed, &CallError{Kind: KindBadRequest, Message: "bad state reply"}
	}
	return session.State(payload[0]), nil
}

// GetConfig queries the active channel configuration.
func (c *Client) GetConfig() (drive.ChannelConfig, error) {
	payload, err := c.call(CodeGetConfig, nil)
	if err != nil {
		return drive.ChannelConfig{}, err
	}
	return DecodeConfig(payload)
}
