package doc

import (
	"fmt"
	"time"

	"github.com/drawkit/sai/pkg/chunk"
	"github.com/drawkit/sai/pkg/common"
)

// Author is the machine-hash stream (the root entry whose name starts with
// a dot): save counters and timestamps the editor stamps on every write.
type Author struct {
	// DocumentID increments on every save or export.
	DocumentID   uint32
	DateCreated  time.Time
	DateModified time.Time
	// MachineHash identifies the machine the document was created on.
	MachineHash uint64
}

// DecodeAuthor parses the author stream. Timestamps are stored as whole
// seconds since the 1601 epoch, unlike the directory entries' FILETIME.
func DecodeAuthor(cr *chunk.Reader) (*Author, error) {
	bitflag, err := cr.Uint32()
	if err != nil {
		return nil, err
	}
	if bitflag&0x01000000 != 0 {
		return nil, fmt.Errorf("author: %w: flag word %#x", common.ErrUnrecognized, bitflag)
	}

	a := &Author{}
	if a.DocumentID, err = cr.Uint32(); err != nil {
		return nil, err
	}
	created, err := cr.Uint64()
	if err != nil {
		return nil, err
	}
	modified, err := cr.Uint64()
	if err != nil {
		return nil, err
	}
	a.DateCreated = common.FiletimeSecondsToTime(created)
	a.DateModified = common.FiletimeSecondsToTime(modified)

	if a.MachineHash, err = cr.Uint64(); err != nil {
		return nil, err
	}
	return a, nil
}
