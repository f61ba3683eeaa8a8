// Package identity maps display names to stable subject ids.
package identity

import (
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/google/uuid"

	"warden/pkg/datastore"
)

// syntheticPrefix marks ids synthesized from a name hash. The remaining 12
// hex digits carry the hash, so repeated resolutions of the same unresolvable
// name collide on the same id.
const syntheticPrefix = "00000000-0000-0000-0000-"

// Presence reports the stable id of a currently connected identity.
type Presence interface {
	LiveSubjectID(name string) (uuid.UUID, bool)
}

// Directory looks up historical ids for identities that are not connected
// and have no ban history, e.g. from a host-maintained roster file.
type Directory interface {
	Lookup(name string) (uuid.UUID, bool)
}

// Resolver resolves a display name to a stable subject id. Resolution never
// fails: when every lookup comes up empty it falls through to deterministic
// synthesis.
type Resolver struct {
	presence  Presence
	bans      datastore.BanReadProvider
	directory Directory
}

// NewResolver creates a Resolver. presence and directory may be nil; the
// corresponding resolution steps are then skipped.
func NewResolver(presence Presence, bans datastore.BanReadProvider, directory Directory) *Resolver {
	return &Resolver{presence: presence, bans: bans, directory: directory}
}

// Resolve returns the stable subject id for a display name.
//
// Resolution order: live session id, then the id stored on the most recent
// ban record for the name, then the directory, then synthesis. Store lookup
// failures are logged and skipped; they never abort resolution.
func (r *Resolver) Resolve(name string) uuid.UUID {
	if r.presence != nil {
		if id, ok := r.presence.LiveSubjectID(name); ok {
			return id
		}
	}
	if r.bans != nil {
		id, ok, err := r.bans.LatestSubjectIDByName(name)
		if err != nil {
			slog.Warn("identity: ban history lookup failed", "name", name, "err", err)
		} else if ok {
			return id
		}
	}
	if r.directory != nil {
		if id, ok := r.directory.Lookup(name); ok {
			return id
		}
	}
	return SynthesizeID(name)
}

// SynthesizeID derives a deterministic pseudo-id from a display name: a
// signed 32-bit rolling hash (h = h*31 + codeUnit) over the name's UTF-16
// code units, absolute value, rendered as lowercase hex left-padded to 12
// digits behind a fixed prefix.
func SynthesizeID(name string) uuid.UUID {
	var h int32
	for _, cu := range utf16.Encode([]rune(name)) {
		h = h*31 + int32(cu)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	hex := strconv.FormatInt(abs, 16)
	if pad := 12 - len(hex); pad > 0 {
		hex = strings.Repeat("0", pad) + hex
	}
	return uuid.MustParse(syntheticPrefix + hex)
}
