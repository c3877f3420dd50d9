package common

import "time"

// Geometry of the SAI container. The file is an array of 4096-byte encrypted
// blocks. Every block whose position is a multiple of 512 is a table block
// holding one 8-byte entry (checksum + next pointer) for itself and each of
// the 511 blocks after it. Directory data starts at block 2.
const (
	BlockSize      = 4096
	BlocksPerTable = 512
	WordsPerBlock  = BlockSize / 4

	TableEntrySize     = 8
	DirEntrySize       = 64
	DirEntriesPerBlock = BlockSize / DirEntrySize

	RootBlock uint32 = 2
)

type EntryKind uint8

const (
	EntryKindFolder EntryKind = 0x10
	EntryKindFile   EntryKind = 0x80
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindFolder:
		return "folder"
	case EntryKindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Seconds between the Windows FILETIME epoch (1601-01-01) and the Unix epoch.
const filetimeEpochDelta = 11644473600

// FiletimeToUnix converts a Windows FILETIME value (100ns intervals since
// 1601-01-01 UTC) to Unix seconds.
func FiletimeToUnix(ft uint64) int64 {
	return int64(ft/10000000) - filetimeEpochDelta
}

// FiletimeSecondsToTime converts a count of whole seconds since 1601-01-01
// UTC, which is how the container stores its document timestamps.
func FiletimeSecondsToTime(secs uint64) time.Time {
	return time.Unix(int64(secs)-filetimeEpochDelta, 0).UTC()
}
