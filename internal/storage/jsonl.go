package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"guildgate/internal/model"
)

// AuditAction names an audited membership change.
type AuditAction string

const (
	AuditVerify   AuditAction = "verify"
	AuditUnverify AuditAction = "unverify"
)

// AuditEntry is one line of the membership audit log.
type AuditEntry struct {
	Action   AuditAction `json:"action"`
	GuildKey string      `json:"guild_key"`
	MemberID string      `json:"member_id"`
	Address  string      `json:"address,omitempty"`
	At       string      `json:"at"`
}

// AuditLog appends membership changes to a JSONL file. Upserts still replace
// the stored address; this log keeps the history.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Append writes one entry for rec.
func (l *AuditLog) Append(action AuditAction, rec model.VerificationRecord) error {
	if l == nil || l.path == "" {
		return nil
	}

	entry := AuditEntry{
		Action:   action,
		GuildKey: rec.GuildKey,
		MemberID: rec.MemberID,
		At:       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if action == AuditVerify {
		entry.Address = rec.Address.Hex()
	}

	dir := filepath.Dir(l.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit dir: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return nil
}
