package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

const suffix = ".snap.zst"

type Header struct {
	Version   int    `json:"version"`
	Tick      uint64 `json:"tick"`
	CreatedAt string `json:"created_at,omitempty"`
	Plots     int    `json:"plots"`
	Traders   int    `json:"traders"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate   int     `json:"tick_rate_hz"`
	PlotRadius float64 `json:"plot_radius"`

	Plots      []PlotV1      `json:"plots"`
	Traders    []TraderV1    `json:"traders"`
	Containers []ContainerV1 `json:"containers"`
	Players    []PlayerV1    `json:"players"`
}

type PlotV1 struct {
	ID       string     `json:"id"`
	Pos      [3]float64 `json:"pos"`
	Radius   float64    `json:"radius"`
	Rotation int        `json:"rotation"`
	TraderID string     `json:"trader_id,omitempty"`
}

// TraderV1 keeps actor positions so traders whose plot link is lost can be
// matched back to a plot on load.
type TraderV1 struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	OwnerName  string     `json:"owner_name"`
	State      string     `json:"state"`
	Stand      string     `json:"stand"`
	Storage    string     `json:"storage"`
	Host       string     `json:"host"`
	PlotID     string     `json:"plot_id,omitempty"`
	Blocked    []int      `json:"blocked,omitempty"`
	HostPos    [3]float64 `json:"host_pos"`
	StandPos   [3]float64 `json:"stand_pos"`
	StoragePos [3]float64 `json:"storage_pos"`
}

type ContainerV1 struct {
	ID    string   `json:"id"`
	Kind  string   `json:"kind"`
	Owner string   `json:"owner,omitempty"`
	Slots []SlotV1 `json:"slots"`
}

type SlotV1 struct {
	Item   string `json:"item,omitempty"`
	Amount int    `json:"amount,omitempty"`
	Max    int    `json:"max,omitempty"`
}

type PlayerV1 struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Pos       [3]float64 `json:"pos"`
	Inventory string     `json:"inventory"`
	LastSeen  int64      `json:"last_seen_unix"`
}

// PathFor is the canonical snapshot file for tick under dir.
func PathFor(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", tick, suffix))
}

// Latest returns the highest-tick snapshot in dir, or "" when none exist.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, suffix), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

// WriteSnapshot writes to a temp file in the same directory and renames it
// into place, so a crash never leaves a truncated snapshot at path.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	snap.Header.Version = Version
	snap.Header.Plots = len(snap.Plots)
	snap.Header.Traders = len(snap.Traders)

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
