package network

import (
	"crypto/rand"
	"math/big"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"lanrace/protocol"
)

// RoomInfo is one discovered host, for the join list.
type RoomInfo struct {
	RoomID   string    `json:"room_id"`
	Name     string    `json:"room_name"`
	IP       string    `json:"ip"`
	Port     int       `json:"port"`
	LastSeen time.Time `json:"last_seen"`
}

// Addr is host:port for DialTCP.
func (r RoomInfo) Addr() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// Directory holds discovered rooms by id. Rooms are added or refreshed on
// every announcement and dropped once they go quiet for longer than TTL.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]RoomInfo
	clock clockwork.Clock
	ttl   time.Duration
}

// RoomTTL is how long a discovered room stays listed after its last
// announcement. Hosts announce every AnnounceInterval.
const RoomTTL = 2 * protocol.AnnounceInterval

func NewDirectory(clock clockwork.Clock, ttl time.Duration) *Directory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Directory{
		rooms: make(map[string]RoomInfo),
		clock: clock,
		ttl:   ttl,
	}
}

// Observe records an announcement. from is the sender address when the
// transport knows it; it fills in a missing ip.
func (d *Directory) Observe(a protocol.RoomAnnounce, from net.IP) {
	if a.RoomID == "" {
		return
	}
	ip := a.IP
	if ip == "" && from != nil {
		ip = from.String()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[a.RoomID] = RoomInfo{
		RoomID:   a.RoomID,
		Name:     a.RoomName,
		IP:       ip,
		Port:     a.Port,
		LastSeen: d.clock.Now(),
	}
}

// ListRooms returns live rooms sorted by name, then id.
func (d *Directory) ListRooms() []RoomInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RoomInfo, 0, len(d.rooms))
	for id, r := range d.rooms {
		if d.expired(r) {
			delete(d.rooms, id)
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out
}

func (d *Directory) expired(r RoomInfo) bool {
	return d.ttl > 0 && d.clock.Since(r.LastSeen) > d.ttl
}

const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewRoomID generates a 6-char room code.
func NewRoomID() string {
	return generateCode(6)
}

func generateCode(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeChars[idx.Int64()]
	}
	return string(b)
}
