package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// ZoneInfo is the API view of a storage zone derived from its retained readings
type ZoneInfo struct {
	Zone     string        `json:"zone"`
	Readings int           `json:"readings"`
	LastSeen time.Time     `json:"last_seen"`
	Status   models.Status `json:"status"` // overall status of the zone's latest reading
}

// ZonesService lists the zones present in the store
type ZonesService struct {
	query *QueryService
}

// NewZonesService creates a new ZonesService
func NewZonesService(query *QueryService) *ZonesService {
	return &ZonesService{query: query}
}

// ListZonesPaginated returns a page of zones and the total count. If search is non-empty,
// filters by zone label (case-insensitive substring).
func (s *ZonesService) ListZonesPaginated(ctx context.Context, page, limit int, search string) (items []ZoneInfo, total int) {
	if limit <= 0 {
		limit = 9
	}
	if page < 1 {
		page = 1
	}
	needle := NormalizeZone(search)

	byKey := make(map[string]*ZoneInfo)
	for cr := range s.query.Search(ctx, Filter{}) {
		key := NormalizeZone(cr.Zone)
		if key == "" || (needle != "" && !strings.Contains(key, needle)) {
			continue
		}
		info, ok := byKey[key]
		if !ok {
			info = &ZoneInfo{Zone: strings.Join(strings.Fields(cr.Zone), " ")}
			byKey[key] = info
		}
		info.Readings++
		info.LastSeen = cr.Timestamp
		info.Status = cr.Overall()
	}

	all := make([]ZoneInfo, 0, len(byKey))
	for _, info := range byKey {
		all = append(all, *info)
	}
	slices.SortFunc(all, func(a, b ZoneInfo) int {
		return strings.Compare(NormalizeZone(a.Zone), NormalizeZone(b.Zone))
	})

	total = len(all)
	pages := 0
	if total > 0 {
		pages = (total-1)/limit + 1
	}
	if page > pages {
		return []ZoneInfo{}, total
	}
	offset := (page - 1) * limit
	end := total
	if limit < total-offset {
		end = offset + limit
	}
	return all[offset:end], total
}

// ListZoneNames returns every distinct zone label (for filter dropdowns)
func (s *ZonesService) ListZoneNames() []string {
	return Zones(s.query.store.All())
}
