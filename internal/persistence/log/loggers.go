package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"plotbazaar.io/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// stream names where one kind of entry lives under a world directory.
type stream struct {
	dir    string
	prefix string
}

var (
	auditStream   = stream{dir: "audit", prefix: "audit"}
	receiptStream = stream{dir: "receipts", prefix: "receipts"}
)

func (s stream) root(dataDir string) string { return filepath.Join(dataDir, s.dir) }
func (s stream) file(hour string) string    { return s.prefix + "-" + hour + ".jsonl.zst" }

// Journal appends entries as JSON lines to <prefix>-YYYY-MM-DD-HH.jsonl.zst,
// starting a new file each UTC hour. Every entry is flushed before Append
// returns so a crash loses at most the zstd frame trailer.
type Journal[T any] struct {
	dir    string
	stream stream
	now    func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	zw   *zstd.Encoder
	bw   *bufio.Writer
	je   *json.Encoder
}

func openJournal[T any](dataDir string, s stream) *Journal[T] {
	return &Journal[T]{dir: s.root(dataDir), stream: s, now: time.Now}
}

func (j *Journal[T]) Append(e T) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if hour := j.now().UTC().Format(hourLayout); hour != j.hour {
		if err := j.switchTo(hour); err != nil {
			return err
		}
	}
	if err := j.je.Encode(e); err != nil {
		return err
	}
	return j.bw.Flush()
}

func (j *Journal[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finish()
}

// switchTo ends the current file and opens the one for hour. Reopening an
// hour that already has a file appends a second zstd frame to it.
func (j *Journal[T]) switchTo(hour string) error {
	if err := j.finish(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(j.dir, j.stream.file(hour)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if j.zw == nil {
		j.zw, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return err
		}
	} else {
		j.zw.Reset(f)
	}
	j.f, j.hour = f, hour
	j.bw = bufio.NewWriterSize(j.zw, 64*1024)
	j.je = json.NewEncoder(j.bw)
	j.je.SetEscapeHTML(false)
	return nil
}

func (j *Journal[T]) finish() error {
	if j.f == nil {
		return nil
	}
	err := j.bw.Flush()
	if cerr := j.zw.Close(); err == nil {
		err = cerr
	}
	if cerr := j.f.Close(); err == nil {
		err = cerr
	}
	j.f, j.bw, j.je, j.hour = nil, nil, nil, ""
	return err
}

// AuditLogger journals placement, admin and shop audit entries.
type AuditLogger struct{ *Journal[world.AuditEntry] }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{openJournal[world.AuditEntry](dataDir, auditStream)}
}

func (l *AuditLogger) WriteAudit(e world.AuditEntry) error { return l.Append(e) }

// ReceiptLogger journals one entry per completed purchase.
type ReceiptLogger struct{ *Journal[world.ReceiptEntry] }

func NewReceiptLogger(dataDir string) *ReceiptLogger {
	return &ReceiptLogger{openJournal[world.ReceiptEntry](dataDir, receiptStream)}
}

func (l *ReceiptLogger) WriteReceipt(e world.ReceiptEntry) error { return l.Append(e) }
