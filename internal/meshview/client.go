package meshview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"meshtui/internal/domain"
)

const (
	requestTimeout = 10 * time.Second
	nodeCacheTTL   = 5 * time.Second
	maxBodyBytes   = 8 << 20
)

// Client talks to a MeshView map-service HTTP API. Node queries are cached
// briefly so the firehose and confirmation pollers do not double-hit the
// server.
type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.Mutex
	cachedNodes []domain.MeshViewNode
	cachedAt    time.Time
}

type nodeRecord struct {
	ID        int64   `json:"id"`
	NodeID    string  `json:"node_id"`
	LongName  string  `json:"long_name"`
	ShortName string  `json:"short_name"`
	HWModel   string  `json:"hw_model"`
	Role      string  `json:"role"`
	LastLat   *int32  `json:"last_lat"`
	LastLong  *int32  `json:"last_long"`
	LastSeen  float64 `json:"last_seen_us"`
}

// PacketRecord is one row from the packet firehose endpoint.
type PacketRecord struct {
	ID           int64  `json:"id"`
	FromNodeID   string `json:"from_node_id"`
	PortNum      string `json:"portnum"`
	Payload      string `json:"payload"`
	ImportTimeUS int64  `json:"import_time_us"`
}

type packetsResponse struct {
	Packets          []PacketRecord `json:"packets"`
	LatestImportTime int64          `json:"latest_import_time"`
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Nodes returns nodes active within the given number of days. Results are
// cached for nodeCacheTTL.
func (c *Client) Nodes(ctx context.Context, daysActive int) ([]domain.MeshViewNode, error) {
	c.mu.Lock()
	if c.cachedNodes != nil && time.Since(c.cachedAt) < nodeCacheTTL {
		cached := c.cachedNodes
		c.mu.Unlock()

		return cached, nil
	}
	c.mu.Unlock()

	query := url.Values{}
	query.Set("days_active", strconv.Itoa(daysActive))
	var records []nodeRecord
	if err := c.getJSON(ctx, "/api/nodes", query, &records); err != nil {
		return nil, err
	}

	nodes := make([]domain.MeshViewNode, 0, len(records))
	for _, rec := range records {
		node, err := convertNodeRecord(rec)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}

	c.mu.Lock()
	c.cachedNodes = nodes
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return nodes, nil
}

// Packets returns packets imported after the given cursor, oldest first, plus
// the new cursor position.
func (c *Client) Packets(ctx context.Context, sinceImportTime int64, limit int) ([]PacketRecord, int64, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatInt(sinceImportTime, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp packetsResponse
	if err := c.getJSON(ctx, "/api/packets", query, &resp); err != nil {
		return nil, sinceImportTime, err
	}
	cursor := resp.LatestImportTime
	if cursor < sinceImportTime {
		cursor = sinceImportTime
	}

	return resp.Packets, cursor, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build meshview request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("meshview request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("meshview %s status: %s", path, resp.Status)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode meshview %s response: %w", path, err)
	}

	return nil
}

func convertNodeRecord(rec nodeRecord) (domain.MeshViewNode, error) {
	num, err := nodeNumFromRecord(rec)
	if err != nil {
		return domain.MeshViewNode{}, err
	}

	node := domain.MeshViewNode{
		Num:       num,
		ShortName: rec.ShortName,
		LongName:  rec.LongName,
		HWModel:   rec.HWModel,
		Role:      rec.Role,
	}
	if rec.LastLat != nil && rec.LastLong != nil {
		node.LatitudeI = rec.LastLat
		node.LongitudeI = rec.LastLong
	}
	if rec.LastSeen > 0 {
		node.LastSeen = time.UnixMicro(int64(rec.LastSeen))
	}

	return node, nil
}

func nodeNumFromRecord(rec nodeRecord) (uint32, error) {
	if rec.NodeID != "" {
		if num, err := domain.ParseNodeNum(rec.NodeID); err == nil {
			return num, nil
		}
	}
	if rec.ID > 0 && rec.ID <= int64(^uint32(0)) {
		return uint32(rec.ID), nil
	}

	return 0, fmt.Errorf("node record has no usable id: %q", rec.NodeID)
}
