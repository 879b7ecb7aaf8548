package menusync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"menuboard/internal/menu/models"
	"menuboard/internal/menu/push"
	"menuboard/pkg/platform/sentinel"
)

// The Apply functions are the merge engine. Each takes the current projection
// and returns the next one. When nothing matches the input projection is
// returned as is; otherwise a new map is returned in which only the touched
// buckets (and the touched items' extras) are new slices. Merges never fail.

// ApplyItemUpserted replaces every item with the same id in place. If the id
// is unknown, the item is appended to the bucket named by its category; if
// there is no such bucket the event is dropped.
func ApplyItemUpserted(p models.Projection, item models.Item) models.Projection {
	var next models.Projection
	for name, bucket := range p {
		i := indexOfItem(bucket, item.ID)
		if i < 0 {
			continue
		}
		if next == nil {
			next = p.Clone()
		}
		updated := slices.Clone(bucket)
		for ; i < len(updated); i++ {
			if updated[i].ID == item.ID {
				updated[i] = item
			}
		}
		next[name] = updated
	}
	if next != nil {
		return next
	}

	bucket, ok := p[item.Category]
	if !ok {
		return p
	}
	next = p.Clone()
	next[item.Category] = append(slices.Clip(bucket), item)
	return next
}

// ApplyItemRemoved drops every item with the given id from every bucket.
func ApplyItemRemoved(p models.Projection, itemID int64) models.Projection {
	var next models.Projection
	for name, bucket := range p {
		if indexOfItem(bucket, itemID) < 0 {
			continue
		}
		if next == nil {
			next = p.Clone()
		}
		next[name] = slices.DeleteFunc(slices.Clone(bucket), func(it models.Item) bool {
			return it.ID == itemID
		})
	}
	if next == nil {
		return p
	}
	return next
}

// ApplyExtraUpserted replaces the extra with the same id on every item that
// carries it. Extras that no item carries are dropped: the payload does not
// say which item they belong to.
func ApplyExtraUpserted(p models.Projection, extra models.Extra) models.Projection {
	return mapExtras(p, extra.ID, func(extras []models.Extra) []models.Extra {
		updated := slices.Clone(extras)
		for i := range updated {
			if updated[i].ID == extra.ID {
				updated[i] = extra
			}
		}
		return updated
	})
}

// ApplyExtraRemoved drops the extra with the given id from every item.
func ApplyExtraRemoved(p models.Projection, extraID int64) models.Projection {
	return mapExtras(p, extraID, func(extras []models.Extra) []models.Extra {
		return slices.DeleteFunc(slices.Clone(extras), func(e models.Extra) bool {
			return e.ID == extraID
		})
	})
}

// mapExtras rewrites the extras of every item carrying extraID.
func mapExtras(p models.Projection, extraID int64, rewrite func([]models.Extra) []models.Extra) models.Projection {
	var next models.Projection
	for name, bucket := range p {
		var updated []models.Item
		for i, item := range bucket {
			if item.IndexOfExtra(extraID) < 0 {
				continue
			}
			if updated == nil {
				updated = slices.Clone(bucket)
			}
			item.Extras = rewrite(item.Extras)
			updated[i] = item
		}
		if updated == nil {
			continue
		}
		if next == nil {
			next = p.Clone()
		}
		next[name] = updated
	}
	if next == nil {
		return p
	}
	return next
}

func indexOfItem(bucket []models.Item, id int64) int {
	return slices.IndexFunc(bucket, func(it models.Item) bool { return it.ID == id })
}

// Apply decodes payload according to kind and merges it into p. A malformed
// payload returns p unchanged and an error wrapping sentinel.ErrBadData.
func Apply(p models.Projection, kind push.Kind, payload json.RawMessage) (models.Projection, error) {
	switch kind {
	case push.KindItemUpserted:
		var item models.Item
		if err := decodeEntity(payload, &item); err != nil {
			return p, err
		}
		return ApplyItemUpserted(p, item), nil
	case push.KindItemRemoved:
		id, err := decodeID(payload)
		if err != nil {
			return p, err
		}
		return ApplyItemRemoved(p, id), nil
	case push.KindExtraUpserted:
		var extra models.Extra
		if err := decodeEntity(payload, &extra); err != nil {
			return p, err
		}
		return ApplyExtraUpserted(p, extra), nil
	case push.KindExtraRemoved:
		id, err := decodeID(payload)
		if err != nil {
			return p, err
		}
		return ApplyExtraRemoved(p, id), nil
	default:
		return p, fmt.Errorf("%w: unknown event kind %q", sentinel.ErrBadData, kind)
	}
}

// decodeEntity unmarshals an upsert payload and rejects objects without an id
// field. Zero is a valid id.
func decodeEntity(payload json.RawMessage, dst any) error {
	var head struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrBadData, err)
	}
	if head.ID == nil {
		return fmt.Errorf("%w: payload has no id", sentinel.ErrBadData)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrBadData, err)
	}
	return nil
}

// decodeID accepts a bare id (number or numeric string) or {"id": ...}.
func decodeID(payload json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return 0, fmt.Errorf("%w: %v", sentinel.ErrBadData, err)
		}
		return parseID(obj.ID)
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return 0, fmt.Errorf("%w: %v", sentinel.ErrBadData, err)
	}
	return parseID(n)
}

func parseID(n json.Number) (int64, error) {
	if n == "" {
		return 0, fmt.Errorf("%w: payload has no id", sentinel.ErrBadData)
	}
	id, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: id %q: %v", sentinel.ErrBadData, n, err)
	}
	return id, nil
}
