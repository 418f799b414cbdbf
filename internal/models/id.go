package models

import "fmt"

// EntityID is the identity of an entity as a sum type: either the
// process-generated local UUID (entity not yet created on the server) or
// the server-assigned integer id. Callers match on the variant instead of
// encoding locality into the sign of an integer.
type EntityID struct {
	local    string
	remote   int64
	isRemote bool
}

// LocalID builds the local variant.
func LocalID(id string) EntityID { return EntityID{local: id} }

// RemoteID builds the server-assigned variant.
func RemoteID(id int64) EntityID { return EntityID{remote: id, isRemote: true} }

// IsRemote reports whether the id is server-assigned.
func (id EntityID) IsRemote() bool { return id.isRemote }

// Local returns the local UUID variant.
func (id EntityID) Local() (string, bool) {
	if id.isRemote {
		return "", false
	}
	return id.local, true
}

// Remote returns the server-assigned variant.
func (id EntityID) Remote() (int64, bool) {
	if !id.isRemote {
		return 0, false
	}
	return id.remote, true
}

func (id EntityID) String() string {
	if id.isRemote {
		return fmt.Sprintf("remote:%d", id.remote)
	}
	return "local:" + id.local
}
