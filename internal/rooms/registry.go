package rooms

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

const (
	PrefixUser    = "user_"
	PrefixServer  = "server_"
	PrefixChannel = "channel_"
	PrefixVoice   = "voice_"
	PrefixVideo   = "video_"
)

func UserRoom(userID int64) string       { return fmt.Sprintf("%s%d", PrefixUser, userID) }
func ServerRoom(serverID int64) string   { return fmt.Sprintf("%s%d", PrefixServer, serverID) }
func ChannelRoom(channelID int64) string { return fmt.Sprintf("%s%d", PrefixChannel, channelID) }
func VoiceRoom(channelID int64) string   { return fmt.Sprintf("%s%d", PrefixVoice, channelID) }
func VideoRoom(roomID string) string     { return PrefixVideo + roomID }

func IsVoice(room string) bool { return strings.HasPrefix(room, PrefixVoice) }
func IsVideo(room string) bool { return strings.HasPrefix(room, PrefixVideo) }

// Registry maps room ids to the participant ids currently in them.
// It knows nothing about connections, a single lock keeps every
// operation linearizable so an empty room is never left behind.
type Registry struct {
	mutex sync.RWMutex
	rooms map[string]map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[int64]struct{})}
}

// Join reports whether memberID was newly added
func (r *Registry) Join(room string, memberID int64) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.join(room, memberID)
}

// Leave reports whether memberID was in the room
func (r *Registry) Leave(room string, memberID int64) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.leave(room, memberID)
}

// JoinAndSnapshot joins and returns the roster including memberID in one step,
// so two concurrent joiners always see each other
func (r *Registry) JoinAndSnapshot(room string, memberID int64) (bool, []int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	added := r.join(room, memberID)
	return added, r.snapshot(room)
}

// LeaveAndSnapshot leaves and returns who is still in the room
func (r *Registry) LeaveAndSnapshot(room string, memberID int64) (bool, []int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := r.leave(room, memberID)
	return removed, r.snapshot(room)
}

// Members returns a sorted copy, nil for rooms that don't exist
func (r *Registry) Members(room string) []int64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.snapshot(room)
}

func (r *Registry) Has(room string, memberID int64) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.rooms[room][memberID]
	return ok
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.rooms)
}

func (r *Registry) join(room string, memberID int64) bool {
	members, exists := r.rooms[room]
	if !exists {
		members = make(map[int64]struct{})
		r.rooms[room] = members
	}

	if _, already := members[memberID]; already {
		return false
	}
	members[memberID] = struct{}{}
	return true
}

func (r *Registry) leave(room string, memberID int64) bool {
	members, exists := r.rooms[room]
	if !exists {
		return false
	}

	_, removed := members[memberID]
	delete(members, memberID)

	// delete room from map if nobody is left in it
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return removed
}

func (r *Registry) snapshot(room string) []int64 {
	members, exists := r.rooms[room]
	if !exists {
		return nil
	}

	ids := make([]int64, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
