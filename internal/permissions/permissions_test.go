package permissions

import (
	"chatapp-backend/internal/apperr"
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestBitsAreDistinctPowersOfTwo(t *testing.T) {
	seen := Permission(0)
	for _, n := range names {
		if n.perm&(n.perm-1) != 0 {
			t.Errorf("%s is not a power of two: %d", n.name, n.perm)
		}
		if seen&n.perm != 0 {
			t.Errorf("%s reuses a bit", n.name)
		}
		seen |= n.perm
	}
	if seen != All {
		t.Errorf("All = %d, want %d", All, seen)
	}
}

func TestDefaults(t *testing.T) {
	everyone := DefaultEveryone()
	for _, p := range []Permission{ViewChannel, SendMessages, EmbedLinks, AttachFiles, ReadMessageHistory, Connect, Speak, Video, UseVoiceActivity} {
		if everyone&p == 0 {
			t.Errorf("DefaultEveryone() is missing %s", p)
		}
	}
	for _, p := range []Permission{KickMembers, BanMembers, ManageMessages, ManageChannels, Administrator, ManageRoles, ManageServer, PrioritySpeaker} {
		if everyone&p != 0 {
			t.Errorf("DefaultEveryone() should not contain %s", p)
		}
	}

	mod := DefaultMod()
	if mod&everyone != everyone {
		t.Error("DefaultMod() should contain DefaultEveryone()")
	}
	if mod != everyone|KickMembers|BanMembers|ManageMessages|ManageChannels {
		t.Errorf("DefaultMod() = %s", mod)
	}
}

func TestHas(t *testing.T) {
	tests := []struct {
		name      string
		effective Permission
		required  Permission
		want      bool
	}{
		{"Granted bit", SendMessages | ViewChannel, SendMessages, true},
		{"Missing bit", SendMessages, ManageRoles, false},
		{"Zero mask", 0, ViewChannel, false},
		{"Administrator grants anything", Administrator, ManageServer, true},
		{"Any of several required bits", KickMembers, KickMembers | BanMembers, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Has(tc.effective, tc.required); got != tc.want {
				t.Errorf("Has(%s, %s) = %t, want %t", tc.effective, tc.required, got, tc.want)
			}
		})
	}
}

func TestEffectiveIsUnionOfRoles(t *testing.T) {
	r1 := SendMessages | ViewChannel
	r2 := KickMembers

	mask := Effective([]Permission{r1, r2})
	if mask != r1|r2 {
		t.Fatalf("Effective() = %s, want %s", mask, r1|r2)
	}

	for _, p := range []Permission{SendMessages, ViewChannel, KickMembers} {
		if !Allowed(false, []Permission{r1, r2}, p) {
			t.Errorf("%s granted by one role was denied", p)
		}
	}

	if Effective(nil) != 0 {
		t.Error("no roles should give an empty mask")
	}
}

func TestOwnerBypassesMask(t *testing.T) {
	for _, masks := range [][]Permission{nil, {0}, {SendMessages}} {
		for _, n := range names {
			if !Allowed(true, masks, n.perm) {
				t.Errorf("owner with roles %v was denied %s", masks, n.name)
			}
		}
	}
}

type fakeSource struct {
	owners  map[int64]int64
	members map[[2]int64][]Permission
}

func (f *fakeSource) ServerOwner(_ context.Context, serverID int64) (int64, error) {
	owner, ok := f.owners[serverID]
	if !ok {
		return 0, apperr.NotFoundf("Server not found")
	}
	return owner, nil
}

func (f *fakeSource) MemberRoleMasks(_ context.Context, serverID int64, userID int64) ([]Permission, bool, error) {
	masks, ok := f.members[[2]int64{serverID, userID}]
	return masks, ok, nil
}

func TestGateRequire(t *testing.T) {
	source := &fakeSource{
		owners: map[int64]int64{10: 1},
		members: map[[2]int64][]Permission{
			{10, 2}: {DefaultEveryone()},
			{10, 3}: {},
			{10, 4}: {SendMessages, ManageRoles},
			{10, 5}: {Administrator},
		},
	}
	gate := NewGate(source, zap.NewNop().Sugar())

	tests := []struct {
		name     string
		user     int64
		server   int64
		required Permission
		wantKind apperr.Kind
		wantOK   bool
	}{
		{"Owner without membership", 1, 10, ManageServer, 0, true},
		{"Member with baseline role", 2, 10, SendMessages, 0, true},
		{"Member lacking permission", 2, 10, ManageChannels, apperr.AuthorizationDenied, false},
		{"Member without roles", 3, 10, ViewChannel, apperr.AuthorizationDenied, false},
		{"Union of two roles", 4, 10, ManageRoles, 0, true},
		{"Administrator bit", 5, 10, ManageServer, 0, true},
		{"Not a member", 9, 10, ViewChannel, apperr.AuthorizationDenied, false},
		{"Missing server", 1, 99, ViewChannel, apperr.NotFound, false},
		{"Unauthenticated", 0, 10, ViewChannel, apperr.AuthenticationRequired, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.Require(context.Background(), tc.user, tc.server, tc.required)
			if tc.wantOK {
				if err != nil {
					t.Fatalf("Require() failed unexpectedly: %v", err)
				}
			} else if !apperr.IsKind(err, tc.wantKind) {
				t.Fatalf("Require() = %v, want kind %v", err, tc.wantKind)
			}

			if got := gate.Check(context.Background(), tc.user, tc.server, tc.required); got != tc.wantOK {
				t.Errorf("Check() = %t, want %t", got, tc.wantOK)
			}
		})
	}
}

func TestGateRequireMember(t *testing.T) {
	source := &fakeSource{
		owners:  map[int64]int64{10: 1},
		members: map[[2]int64][]Permission{{10, 3}: nil},
	}
	gate := NewGate(source, zap.NewNop().Sugar())

	if err := gate.RequireMember(context.Background(), 3, 10); err != nil {
		t.Errorf("member without roles rejected: %v", err)
	}
	if err := gate.RequireMember(context.Background(), 1, 10); err != nil {
		t.Errorf("owner rejected: %v", err)
	}
	if err := gate.RequireMember(context.Background(), 7, 10); !apperr.IsKind(err, apperr.AuthorizationDenied) {
		t.Errorf("outsider got %v", err)
	}
}

func TestGateRequireGrantable(t *testing.T) {
	source := &fakeSource{
		owners: map[int64]int64{10: 1},
		members: map[[2]int64][]Permission{
			{10, 2}: {SendMessages | ManageRoles},
			{10, 3}: {Administrator},
			{10, 4}: nil,
		},
	}
	gate := NewGate(source, zap.NewNop().Sugar())

	tests := []struct {
		name     string
		user     int64
		mask     Permission
		wantKind apperr.Kind
		wantOK   bool
	}{
		{"Owner grants administrator", 1, Administrator, 0, true},
		{"Subset of held bits", 2, SendMessages, 0, true},
		{"Exactly the held bits", 2, SendMessages | ManageRoles, 0, true},
		{"Empty mask", 4, 0, 0, true},
		{"Administrator escalation", 2, Administrator, apperr.AuthorizationDenied, false},
		{"Bit not held", 2, SendMessages | KickMembers, apperr.AuthorizationDenied, false},
		{"Administrator grants anything", 3, ManageServer | Administrator, 0, true},
		{"Not a member", 9, 0, apperr.AuthorizationDenied, false},
		{"Unauthenticated", 0, 0, apperr.AuthenticationRequired, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.RequireGrantable(context.Background(), tc.user, 10, tc.mask)
			if tc.wantOK {
				if err != nil {
					t.Fatalf("RequireGrantable() failed unexpectedly: %v", err)
				}
			} else if !apperr.IsKind(err, tc.wantKind) {
				t.Fatalf("RequireGrantable() = %v, want kind %v", err, tc.wantKind)
			}
		})
	}
}
