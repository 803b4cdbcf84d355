package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"plotbazaar.io/internal/sim/world"
)

// Scan feeds every line of the <prefix>-*.jsonl.zst files under dir to fn,
// oldest file first. A missing dir yields no lines.
func Scan(dir, prefix string, fn func(line []byte) error) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := scanFile(filepath.Join(dir, name), fn); err != nil {
			return err
		}
	}
	return nil
}

func scanFile(path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return sc.Err()
}

// readStream decodes every entry of s under dataDir that keep accepts.
func readStream[T any](dataDir string, s stream, keep func(T) bool) ([]T, error) {
	var out []T
	err := Scan(s.root(dataDir), s.prefix, func(line []byte) error {
		var e T
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		if keep == nil || keep(e) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// ReadAudit returns the audit entries under dataDir that keep accepts.
func ReadAudit(dataDir string, keep func(world.AuditEntry) bool) ([]world.AuditEntry, error) {
	return readStream(dataDir, auditStream, keep)
}

// ReadReceipts returns the purchase receipts under dataDir that keep accepts.
func ReadReceipts(dataDir string, keep func(world.ReceiptEntry) bool) ([]world.ReceiptEntry, error) {
	return readStream(dataDir, receiptStream, keep)
}
