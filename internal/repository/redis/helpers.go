// internal/repository/redis/helpers.go
package redis

import (
	"sort"

	"ledroitcheck-service/internal/domain/system"
)

func sortSystems(list []*system.SecondarySystem) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}
