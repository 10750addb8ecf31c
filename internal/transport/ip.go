package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"
)

const (
	defaultIPPort    = 4403
	dialTimeout      = 6 * time.Second
	ownerHTTPTimeout = 5 * time.Second
)

// IPTransport sends and receives framed traffic over a TCP socket.
type IPTransport struct {
	host string
	port int

	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex
}

func NewIPTransport(host string, port int) *IPTransport {
	if port == 0 {
		port = defaultIPPort
	}

	return &IPTransport{host: host, port: port}
}

func (t *IPTransport) Name() string {
	return "ip"
}

func (t *IPTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.host == "" {
		return ""
	}

	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *IPTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *IPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := backendLogger("ip", "target", t.targetLocked())
	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}
	if t.host == "" {
		return errors.New("ip host is empty")
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", t.targetLocked())
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return fmt.Errorf("dial tcp: %w", err)
	}
	t.conn = conn
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

func (t *IPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		backendLogger("ip").Warn("close failed", "error", err)

		return err
	}
	backendLogger("ip").Info("closed")

	return nil
}

func (t *IPTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	conn, err := t.currentConn()
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	payload, err := readFrame(ioReadFullFunc(conn))
	if err != nil {
		return nil, err
	}

	return payload, nil
}

func (t *IPTransport) WriteFrame(ctx context.Context, payload []byte) error {
	conn, err := t.currentConn()
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}

	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// FetchOwner reads the device's HTTP status report. Network-attached nodes
// expose it on port 80 independently of the protobuf stream.
func (t *IPTransport) FetchOwner(ctx context.Context) (uint32, *generated.User, error) {
	t.mu.Lock()
	host := t.host
	t.mu.Unlock()
	if host == "" {
		return 0, nil, errors.New("ip host is empty")
	}

	reqCtx, cancel := context.WithTimeout(ctx, ownerHTTPTimeout)
	defer cancel()
	url := "http://" + host + "/json/report"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build owner report request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch owner report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("owner report status: %s", resp.Status)
	}

	var report struct {
		Data struct {
			Device struct {
				MyNodeNum uint32 `json:"myNodeNum"`
				ShortName string `json:"shortname"`
				LongName  string `json:"longname"`
			} `json:"device"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return 0, nil, fmt.Errorf("decode owner report: %w", err)
	}
	if report.Data.Device.MyNodeNum == 0 {
		return 0, nil, errors.New("owner report has no node number")
	}

	user := &generated.User{
		ShortName: report.Data.Device.ShortName,
		LongName:  report.Data.Device.LongName,
	}

	return report.Data.Device.MyNodeNum, user, nil
}

func (t *IPTransport) targetLocked() string {
	if t.host == "" {
		return ""
	}

	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *IPTransport) currentConn() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, errors.New("transport is not connected")
	}

	return t.conn, nil
}
