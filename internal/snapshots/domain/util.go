package domain

import (
	"time"

	"github.com/pendergraft/buildcfg/internal/storage"
)

// storedTimeLayout is how both stores render timestamps.
const storedTimeLayout = "2006-01-02 15:04:05"

func parseStoredTime(s string) time.Time {
	t, _ := time.Parse(storedTimeLayout, s)
	return t
}

func toProject(p storage.Project) Project {
	return Project{
		Name:           p.Name,
		LatestRevision: p.LatestRevision,
		Snapshots:      p.Snapshots,
		UpdatedAt:      parseStoredTime(p.UpdatedAt),
	}
}
