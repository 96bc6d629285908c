package storage

import (
	"time"

	"github.com/class1/graduate/pkg/shootingtime"
)

// Asset is one manifest row: a logical path populated into the disk cache.
type Asset struct {
	Path       string
	Size       int64
	URL        string
	FetchedAt  time.Time
	LastUsedAt time.Time
	Hits       int
}

// CacheStats aggregates assets under one top-level directory.
type CacheStats struct {
	Directory  string
	AssetCount int
	TotalBytes int64
}

// Progress is where a subject's last session left off.
type Progress struct {
	Subject      int
	FromDate     shootingtime.ShootingTime
	OnEvent      int
	OnExperience int
	SessionID    string
	UpdatedAt    time.Time
}
