package settings

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/kalambet/hearth/internal/codec"
	"github.com/kalambet/hearth/internal/storage"
)

// RenameApp sets the display label of the app with identity key key. A blank
// label, or one equal to defaultLabel, removes the custom label instead, so
// the map never holds entries that change nothing.
func (s *Service) RenameApp(ctx context.Context, key, label, defaultLabel string) error {
	if key == "" {
		return fmt.Errorf("%w: empty app key", ErrInvalidValue)
	}
	label = strings.TrimSpace(label)

	err := s.store.Edit(ctx, func(tx *storage.Tx) error {
		stored, ok, err := tx.Get(RenamesKey)
		if err != nil {
			return err
		}
		renames := map[string]string{}
		corrupt := false
		if ok {
			m, err := renameCodec.Decode(stored)
			if err != nil {
				s.log.Warn("malformed persisted value, rewriting", "key", RenamesKey, "error", err)
				corrupt = true
			} else if m != nil {
				renames = m
			}
		}
		before := maps.Clone(renames)

		if label == "" || label == strings.TrimSpace(defaultLabel) {
			delete(renames, key)
		} else {
			renames[key] = label
		}

		if ok && !corrupt && maps.Equal(before, renames) {
			return nil
		}
		if len(renames) == 0 {
			return tx.Delete(RenamesKey)
		}
		raw, err := renameCodec.Encode(renames)
		if err != nil {
			return err
		}
		return tx.Set(RenamesKey, raw)
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", RenamesKey, err)
	}
	s.refresh()
	return nil
}

func decodeRenames(raw string, log *slog.Logger) map[string]string {
	m := codec.DecodeOrDefault(log, renameCodec, RenamesKey, raw, map[string]string{})
	if m == nil {
		return map[string]string{}
	}
	return m
}
