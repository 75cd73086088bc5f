package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"guildgate/internal/model"
)

// LegacySuffix is the file name suffix of per-guild membership files written
// by earlier deployments, one JSON object of member id to address per guild.
const LegacySuffix = "_nft_users.json"

// LegacyGuildName derives the guild name from a legacy file name.
func LegacyGuildName(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, LegacySuffix) {
		return "", false
	}
	name := strings.TrimSuffix(base, LegacySuffix)
	return name, name != ""
}

// ReadLegacyMembers parses a legacy membership file into records for
// guildKey. Entries with an invalid address are returned as skipped member ids.
func ReadLegacyMembers(path, guildKey string) ([]model.VerificationRecord, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read legacy file: %w", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse legacy file: %w", err)
	}

	memberIDs := make([]string, 0, len(raw))
	for id := range raw {
		memberIDs = append(memberIDs, id)
	}
	sort.Strings(memberIDs)

	var (
		records []model.VerificationRecord
		skipped []string
	)
	for _, id := range memberIDs {
		addr, err := model.ParseAddress(raw[id])
		if err != nil || strings.TrimSpace(id) == "" {
			skipped = append(skipped, id)
			continue
		}
		records = append(records, model.VerificationRecord{GuildKey: guildKey, MemberID: id, Address: addr})
	}
	return records, skipped, nil
}
