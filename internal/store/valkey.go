package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/showcall/stagetimer/internal/models"
)

const valkeyKeyPrefix = "stagetimer:room:"

// ValkeyStore persists snapshots in a Valkey/Redis-compatible server. Keys
// carry a TTL so abandoned rooms age out of storage on their own even if the
// process dies before the sweeper does.
type ValkeyStore struct {
	client valkey.Client
	ttl    time.Duration
}

// NewValkeyStore connects to the given address. Snapshots expire after ttl
// unless refreshed by a later save.
func NewValkeyStore(address string, ttl time.Duration) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{address},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	return &ValkeyStore{client: client, ttl: ttl}, nil
}

func (s *ValkeyStore) SaveRoom(ctx context.Context, snap *models.RoomSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal room snapshot: %w", err)
	}

	cmd := s.client.B().Set().Key(valkeyKeyPrefix + snap.Code).Value(string(data)).Ex(s.ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save room %s: %w", snap.Code, err)
	}
	return nil
}

func (s *ValkeyStore) LoadRooms(ctx context.Context) ([]*models.RoomSnapshot, error) {
	var snaps []*models.RoomSnapshot
	var cursor uint64
	for {
		resp := s.client.Do(ctx, s.client.B().Scan().Cursor(cursor).Match(valkeyKeyPrefix+"*").Count(100).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan room keys: %w", err)
		}

		for _, key := range entry.Elements {
			data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
			if err != nil {
				if valkey.IsValkeyNil(err) {
					// Expired between scan and get.
					continue
				}
				return nil, fmt.Errorf("failed to get room %s: %w", key, err)
			}
			var snap models.RoomSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return nil, fmt.Errorf("failed to unmarshal room %s: %w", key, err)
			}
			snaps = append(snaps, &snap)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return snaps, nil
}

func (s *ValkeyStore) DeleteRoom(ctx context.Context, code string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(valkeyKeyPrefix+code).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	return nil
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
