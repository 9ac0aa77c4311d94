package relay

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"drone-gateway/models"
)

// Sender delivers one record to the central server.
type Sender interface {
	Send(record models.AggregatedRecord) error
	Close() error
}

// TCPUplink streams newline-delimited JSON records to the central server
// over a single lazily dialed connection. A failed write closes the
// connection so the next attempt redials; the caller decides whether the
// record is retried (it stays at the head of the queue).
type TCPUplink struct {
	addr    string
	timeout time.Duration
	mu      sync.Mutex
	conn    net.Conn
}

func NewTCPUplink(addr string, timeout time.Duration) *TCPUplink {
	return &TCPUplink{
		addr:    addr,
		timeout: timeout,
	}
}

func (u *TCPUplink) Send(record models.AggregatedRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.conn == nil {
		conn, err := net.DialTimeout("tcp", u.addr, u.timeout)
		if err != nil {
			return err
		}
		u.conn = conn
	}

	u.conn.SetWriteDeadline(time.Now().Add(u.timeout))
	if _, err := u.conn.Write(data); err != nil {
		u.conn.Close()
		u.conn = nil
		return err
	}

	return nil
}

func (u *TCPUplink) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}
