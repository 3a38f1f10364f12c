package directory

import (
	"context"
)

// RosterCounts tallies active and deactivated admins in one read
func (d *Directory) RosterCounts(ctx context.Context) (active, inactive int, err error) {
	admins, err := d.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, admin := range admins {
		if admin.IsDeleted {
			inactive++
		} else {
			active++
		}
	}
	return active, inactive, nil
}
