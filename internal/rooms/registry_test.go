package rooms

import (
	"slices"
	"sync"
	"testing"
)

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	r := NewRegistry()
	room := VoiceRoom(5)

	r.Join(room, 1)
	r.Leave(room, 1)

	if r.Count() != 0 {
		t.Fatalf("expected no rooms, got %d", r.Count())
	}
	if members := r.Members(room); members != nil {
		t.Errorf("Members() of deleted room = %v", members)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()

	if !r.Join("server_1", 7) {
		t.Error("first Join() should report an insert")
	}
	if r.Join("server_1", 7) {
		t.Error("second Join() should be a no-op")
	}

	if members := r.Members("server_1"); !slices.Equal(members, []int64{7}) {
		t.Errorf("Members() = %v, want [7]", members)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Join("channel_3", 1)
	r.Join("channel_3", 2)

	if !r.Leave("channel_3", 1) {
		t.Error("Leave() of a member should report a removal")
	}
	if r.Leave("channel_3", 1) {
		t.Error("second Leave() should be a no-op")
	}
	if r.Leave("channel_404", 1) {
		t.Error("Leave() of an unknown room should be a no-op")
	}

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
	if !r.Has("channel_3", 2) || r.Has("channel_3", 1) {
		t.Errorf("unexpected members %v", r.Members("channel_3"))
	}
}

func TestSnapshots(t *testing.T) {
	r := NewRegistry()
	room := VoiceRoom(9)

	_, roster := r.JoinAndSnapshot(room, 2)
	if !slices.Equal(roster, []int64{2}) {
		t.Errorf("roster after first join = %v", roster)
	}

	_, roster = r.JoinAndSnapshot(room, 1)
	if !slices.Equal(roster, []int64{1, 2}) {
		t.Errorf("roster after second join = %v", roster)
	}

	// snapshots are copies
	roster[0] = 99
	if !slices.Equal(r.Members(room), []int64{1, 2}) {
		t.Error("modifying a snapshot changed the registry")
	}

	_, remaining := r.LeaveAndSnapshot(room, 2)
	if !slices.Equal(remaining, []int64{1}) {
		t.Errorf("remaining = %v", remaining)
	}

	_, remaining = r.LeaveAndSnapshot(room, 1)
	if remaining != nil || r.Count() != 0 {
		t.Errorf("room should be gone, remaining = %v, count = %d", remaining, r.Count())
	}
}

func TestRoomNames(t *testing.T) {
	tests := map[string]string{
		UserRoom(1):      "user_1",
		ServerRoom(22):   "server_22",
		ChannelRoom(333): "channel_333",
		VoiceRoom(4):     "voice_4",
		VideoRoom("abc"): "video_abc",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	if !IsVoice(VoiceRoom(1)) || IsVoice(VideoRoom("1")) || !IsVideo(VideoRoom("1")) {
		t.Error("prefix checks are wrong")
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for worker := range 16 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := range 500 {
				room := VoiceRoom(int64(i % 4))
				r.Join(room, id)
				r.Members(room)
				r.Leave(room, id)
			}
		}(int64(worker))
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Fatalf("expected every room to be deleted, %d left", r.Count())
	}
}
