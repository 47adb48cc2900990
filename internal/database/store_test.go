package database

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/permissions"
	"chatapp-backend/internal/snowflake"
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	sugar := zap.NewNop().Sugar()
	db, err := OpenSqlite(":memory:", sugar)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ids, err := snowflake.New(1)
	if err != nil {
		t.Fatal(err)
	}
	return NewStore(db, ids, sugar)
}

func createUser(t *testing.T, s *Store, name string) models.User {
	t.Helper()

	user, err := s.CreateUser(context.Background(), name, name+"@example.com", []byte("$2a$12$aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	if err != nil {
		t.Fatal(err)
	}
	return user
}

func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatal(err)
	}
	return count
}

func TestCreateUserConflicts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	createUser(t, s, "alice")

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"Same username", "alice", "other@example.com"},
		{"Same email", "alice2", "alice@example.com"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateUser(ctx, tc.username, tc.email, []byte("hash"))
			if !apperr.IsKind(err, apperr.ConflictExists) {
				t.Errorf("CreateUser() = %v, want ConflictExists", err)
			}
		})
	}

	user, err := s.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(user.PasswordHash) == 0 || user.Status != models.StatusOffline {
		t.Errorf("unexpected user %+v", user)
	}
}

func TestServerScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")

	server, err := s.CreateServer(ctx, owner.ID, ServerInput{Name: "Test"})
	if err != nil {
		t.Fatal(err)
	}
	if server.Template != DefaultTemplate {
		t.Errorf("Template = %q", server.Template)
	}

	categories, err := s.Categories(ctx, server.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(categories) != 2 || categories[0].Name != "TEXTKANÄLE" || categories[1].Name != "SPRACHKANÄLE" {
		t.Fatalf("categories = %+v", categories)
	}

	channels, err := s.Channels(ctx, server.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"allgemein": models.ChannelTypeText, "Allgemein": models.ChannelTypeVoice}
	if len(channels) != 2 {
		t.Fatalf("channels = %+v", channels)
	}
	for _, c := range channels {
		if want[c.Name] != c.Type {
			t.Errorf("channel %q has type %q", c.Name, c.Type)
		}
		if c.CategoryID == nil {
			t.Errorf("channel %q has no category", c.Name)
		}
	}

	members, err := s.Members(ctx, server.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].UserID != owner.ID || members[0].Rank != models.RankAdmin {
		t.Fatalf("members = %+v", members)
	}

	if _, _, err := s.DeleteServer(ctx, server.ID); err != nil {
		t.Fatal(err)
	}

	for _, table := range []string{"categories", "channels", "server_members"} {
		if n := countRows(t, s, "SELECT COUNT(*) FROM "+table+" WHERE server_id = ?", server.ID); n != 0 {
			t.Errorf("%d rows left in %s", n, table)
		}
	}
	if _, err := s.ServerByID(ctx, server.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("ServerByID after delete = %v, want NotFound", err)
	}
}

func TestCreateServerIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// the owner doesn't exist, the foreign key fails the transaction
	if _, err := s.CreateServer(ctx, 12345, ServerInput{Name: "Broken"}); !apperr.IsKind(err, apperr.PersistenceFailure) {
		t.Fatalf("CreateServer() = %v, want PersistenceFailure", err)
	}

	for _, table := range []string{"servers", "categories", "channels", "server_members"} {
		if n := countRows(t, s, "SELECT COUNT(*) FROM "+table); n != 0 {
			t.Errorf("%d rows left in %s", n, table)
		}
	}
}

func TestDeleteServerReturnsAttachments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")

	server, err := s.CreateServer(ctx, owner.ID, ServerInput{Name: "Files", Icon: "/uploads/icon.png"})
	if err != nil {
		t.Fatal(err)
	}
	channels, _ := s.Channels(ctx, server.ID)

	_, err = s.CreateMessage(ctx, channels[0].ID, owner.ID, "look", []AttachmentInput{{Filename: "a.png", FileType: "image/png", URL: "/uploads/a.png"}})
	if err != nil {
		t.Fatal(err)
	}

	deleted, urls, err := s.DeleteServer(ctx, server.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted.Icon != "/uploads/icon.png" || len(urls) != 1 || urls[0] != "/uploads/a.png" {
		t.Errorf("DeleteServer() = %+v, %v", deleted, urls)
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM attachments"); n != 0 {
		t.Errorf("%d attachments left", n)
	}
}

func TestMembership(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")
	guest := createUser(t, s, "guest")

	server, err := s.CreateServer(ctx, owner.ID, ServerInput{Name: "Club"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.AddMember(ctx, server.ID, guest.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddMember(ctx, server.ID, guest.ID); !apperr.IsKind(err, apperr.ConflictExists) {
		t.Errorf("second AddMember() = %v, want ConflictExists", err)
	}
	if _, err := s.AddMember(ctx, 999, guest.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("AddMember() on missing server = %v, want NotFound", err)
	}

	masks, isMember, err := s.MemberRoleMasks(ctx, server.ID, guest.ID)
	if err != nil || !isMember || len(masks) != 0 {
		t.Errorf("MemberRoleMasks() = %v, %t, %v", masks, isMember, err)
	}

	servers, err := s.ServersOfUser(ctx, guest.ID)
	if err != nil || len(servers) != 1 {
		t.Errorf("ServersOfUser() = %v, %v", servers, err)
	}

	if err := s.RemoveMember(ctx, server.ID, guest.ID); err != nil {
		t.Fatal(err)
	}
	if _, isMember, _ := s.MemberRoleMasks(ctx, server.ID, guest.ID); isMember {
		t.Error("guest is still a member")
	}
	if err := s.RemoveMember(ctx, server.ID, guest.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("second RemoveMember() = %v, want NotFound", err)
	}
}

func TestRolesAreServerScoped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")
	member := createUser(t, s, "member")

	serverA, _ := s.CreateServer(ctx, owner.ID, ServerInput{Name: "A"})
	serverB, _ := s.CreateServer(ctx, owner.ID, ServerInput{Name: "B"})
	if _, err := s.AddMember(ctx, serverB.ID, member.ID); err != nil {
		t.Fatal(err)
	}

	roleA, err := s.CreateRole(ctx, serverA.ID, "mods", "", permissions.DefaultMod())
	if err != nil {
		t.Fatal(err)
	}
	if roleA.Color != DefaultRoleColor {
		t.Errorf("Color = %q, want default", roleA.Color)
	}

	if err := s.AssignRole(ctx, serverB.ID, member.ID, roleA.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("cross server AssignRole() = %v, want NotFound", err)
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM member_roles"); n != 0 {
		t.Fatalf("%d assignments stored", n)
	}

	speak, _ := s.CreateRole(ctx, serverB.ID, "speakers", "#FF0000", permissions.Speak)
	kick, _ := s.CreateRole(ctx, serverB.ID, "kickers", "#00FF00", permissions.KickMembers)
	for _, role := range []models.Role{speak, kick} {
		if err := s.AssignRole(ctx, serverB.ID, member.ID, role.ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AssignRole(ctx, serverB.ID, member.ID, speak.ID); !apperr.IsKind(err, apperr.ConflictExists) {
		t.Errorf("duplicate AssignRole() = %v, want ConflictExists", err)
	}

	masks, _, err := s.MemberRoleMasks(ctx, serverB.ID, member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := permissions.Effective(masks); got != permissions.Speak|permissions.KickMembers {
		t.Errorf("effective mask = %v", got)
	}

	members, _ := s.Members(ctx, serverB.ID)
	for _, m := range members {
		if m.UserID == member.ID && len(m.Roles) != 2 {
			t.Errorf("member roles = %+v", m.Roles)
		}
	}

	if err := s.UnassignRole(ctx, serverB.ID, member.ID, kick.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRole(ctx, speak.ID); err != nil {
		t.Fatal(err)
	}
	masks, _, _ = s.MemberRoleMasks(ctx, serverB.ID, member.ID)
	if len(masks) != 0 {
		t.Errorf("masks after unassign and delete = %v", masks)
	}
}

func TestChannelsAndCategories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")

	server, _ := s.CreateServer(ctx, owner.ID, ServerInput{Name: "Chan"})
	other, _ := s.CreateServer(ctx, owner.ID, ServerInput{Name: "Other"})

	category, err := s.CreateCategory(ctx, server.ID, "extra", 5)
	if err != nil {
		t.Fatal(err)
	}
	foreign, _ := s.CreateCategory(ctx, other.ID, "foreign", 0)

	if _, err := s.CreateChannel(ctx, server.ID, ChannelInput{Name: "x", CategoryID: &foreign.ID}); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("CreateChannel() with foreign category = %v, want NotFound", err)
	}

	channel, err := s.CreateChannel(ctx, server.ID, ChannelInput{Name: "news", Topic: "read me", CategoryID: &category.ID})
	if err != nil {
		t.Fatal(err)
	}
	if channel.Type != models.ChannelTypeText || channel.Position != 1 {
		t.Errorf("channel = %+v", channel)
	}

	name := "updates"
	private := true
	updated, err := s.UpdateChannel(ctx, channel.ID, ChannelPatch{Name: &name, Private: &private})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "updates" || !updated.Private || updated.Topic != "read me" {
		t.Errorf("updated = %+v", updated)
	}

	if err := s.DeleteCategory(ctx, category.ID); err != nil {
		t.Fatal(err)
	}
	detached, err := s.ChannelByID(ctx, channel.ID)
	if err != nil {
		t.Fatal(err)
	}
	if detached.CategoryID != nil {
		t.Errorf("channel still in category %d", *detached.CategoryID)
	}

	if _, err := s.DeleteChannel(ctx, channel.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DeleteChannel(ctx, channel.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("second DeleteChannel() = %v, want NotFound", err)
	}
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")
	server, _ := s.CreateServer(ctx, owner.ID, ServerInput{Name: "Talk"})
	channels, _ := s.Channels(ctx, server.ID)
	channelID := channels[0].ID

	if _, err := s.CreateMessage(ctx, 424242, owner.ID, "hello", nil); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("CreateMessage() to missing channel = %v, want NotFound", err)
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM messages"); n != 0 {
		t.Fatalf("%d messages persisted", n)
	}

	var sent []models.Message
	for _, content := range []string{"one", "two", "three"} {
		m, err := s.CreateMessage(ctx, channelID, owner.ID, content, []AttachmentInput{{Filename: content + ".txt", FileType: "text/plain", URL: "/uploads/" + content}})
		if err != nil {
			t.Fatal(err)
		}
		if m.User.UserName != "owner" {
			t.Errorf("author = %+v", m.User)
		}
		sent = append(sent, m)
	}

	page, err := s.Messages(ctx, channelID, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Content != "three" || page[1].Content != "two" {
		t.Fatalf("first page = %+v", page)
	}
	if len(page[0].Attachments) != 1 || page[0].Attachments[0].Filename != "three.txt" {
		t.Errorf("attachments = %+v", page[0].Attachments)
	}

	older, err := s.Messages(ctx, channelID, page[1].ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 1 || older[0].Content != "one" {
		t.Errorf("second page = %+v", older)
	}

	edited, err := s.EditMessage(ctx, sent[0].ID, "uno")
	if err != nil {
		t.Fatal(err)
	}
	if edited.Content != "uno" || edited.EditedAt == nil {
		t.Errorf("edited = %+v", edited)
	}

	deleted, err := s.DeleteMessage(ctx, sent[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted.Attachments) != 1 {
		t.Errorf("deleted message lost its attachments: %+v", deleted)
	}
	if n, _ := s.CountMessages(ctx, channelID); n != 2 {
		t.Errorf("CountMessages() = %d, want 2", n)
	}
}

func TestFriendRequestFlow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	x := createUser(t, s, "xavier")
	y := createUser(t, s, "yvonne")

	if _, err := s.SendFriendRequest(ctx, x.ID, x.ID); !apperr.IsKind(err, apperr.ValidationFailed) {
		t.Errorf("self request = %v, want ValidationFailed", err)
	}

	request, err := s.SendFriendRequest(ctx, x.ID, y.ID)
	if err != nil {
		t.Fatal(err)
	}

	pending, err := s.PendingRequests(ctx, y.ID)
	if err != nil || len(pending) != 1 || pending[0].Sender == nil || pending[0].Sender.ID != x.ID {
		t.Fatalf("PendingRequests() = %+v, %v", pending, err)
	}

	if _, err := s.AcceptFriendRequest(ctx, request.ID, x.ID); !apperr.IsKind(err, apperr.AuthorizationDenied) {
		t.Errorf("sender accepting = %v, want AuthorizationDenied", err)
	}
	if _, err := s.AcceptFriendRequest(ctx, request.ID, y.ID); err != nil {
		t.Fatal(err)
	}

	for _, pair := range [][2]int64{{x.ID, y.ID}, {y.ID, x.ID}} {
		friends, err := s.Friends(ctx, pair[0])
		if err != nil || len(friends) != 1 || friends[0].ID != pair[1] {
			t.Errorf("Friends(%d) = %+v, %v", pair[0], friends, err)
		}
		if _, err := s.SendFriendRequest(ctx, pair[0], pair[1]); !apperr.IsKind(err, apperr.ConflictExists) {
			t.Errorf("request after accept = %v, want ConflictExists", err)
		}
	}

	if n := countRows(t, s, "SELECT COUNT(*) FROM friend_associations WHERE status = ?", models.FriendAccepted); n != 1 {
		t.Errorf("%d accepted rows, want exactly 1", n)
	}

	if err := s.RemoveFriend(ctx, y.ID, x.ID); err != nil {
		t.Fatal(err)
	}
	if friends, _ := s.Friends(ctx, x.ID); len(friends) != 0 {
		t.Errorf("friends after removal = %+v", friends)
	}
}

func TestRejectAllowsNewRequest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	x := createUser(t, s, "xavier")
	y := createUser(t, s, "yvonne")

	request, _ := s.SendFriendRequest(ctx, x.ID, y.ID)
	if _, err := s.RejectFriendRequest(ctx, request.ID, y.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AssociationBetween(ctx, x.ID, y.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("association after reject = %v, want NotFound", err)
	}
	if _, err := s.SendFriendRequest(ctx, y.ID, x.ID); err != nil {
		t.Errorf("new request after reject = %v", err)
	}
}

func TestConcurrentFriendRequests(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	x := createUser(t, s, "xavier")
	y := createUser(t, s, "yvonne")

	const attempts = 10
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			from, to := x.ID, y.ID
			if i%2 == 1 {
				from, to = to, from
			}
			_, err := s.SendFriendRequest(ctx, from, to)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !apperr.IsKind(err, apperr.ConflictExists):
			t.Errorf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d requests succeeded, want 1", succeeded)
	}
}

func TestBlockUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	x := createUser(t, s, "xavier")
	y := createUser(t, s, "yvonne")

	request, _ := s.SendFriendRequest(ctx, x.ID, y.ID)

	blocked, err := s.BlockUser(ctx, y.ID, x.ID)
	if err != nil {
		t.Fatal(err)
	}
	if blocked.ID != request.ID || blocked.User1ID != y.ID || blocked.Status != models.FriendBlocked {
		t.Errorf("blocked = %+v", blocked)
	}
	if _, err := s.SendFriendRequest(ctx, x.ID, y.ID); !apperr.IsKind(err, apperr.ConflictExists) {
		t.Errorf("request to a blocker = %v, want ConflictExists", err)
	}

	back, err := s.BlockUser(ctx, x.ID, y.ID)
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != request.ID || back.User1ID != y.ID || back.User2ID != x.ID {
		t.Errorf("blocking back = %+v, want yvonne's block kept", back)
	}

	var blocker int64
	if err := s.db.QueryRowContext(ctx, "SELECT user1_id FROM friend_associations WHERE id = ?", request.ID).Scan(&blocker); err != nil {
		t.Fatal(err)
	}
	if blocker != y.ID {
		t.Errorf("stored blocker = %d, want %d", blocker, y.ID)
	}
}
