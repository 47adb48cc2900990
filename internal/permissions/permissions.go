package permissions

import "strings"

type Permission int64

const (
	ViewChannel Permission = 1 << iota
	SendMessages
	EmbedLinks
	AttachFiles
	ReadMessageHistory

	Connect
	Speak
	Video
	UseVoiceActivity
	PrioritySpeaker

	KickMembers
	BanMembers
	ManageMessages
	ManageChannels

	Administrator
	ManageRoles
	ManageServer
)

// every bit above, used for owners and for masking client supplied values
const All = ViewChannel | SendMessages | EmbedLinks | AttachFiles | ReadMessageHistory |
	Connect | Speak | Video | UseVoiceActivity | PrioritySpeaker |
	KickMembers | BanMembers | ManageMessages | ManageChannels |
	Administrator | ManageRoles | ManageServer

var names = []struct {
	perm Permission
	name string
}{
	{ViewChannel, "VIEW_CHANNEL"},
	{SendMessages, "SEND_MESSAGES"},
	{EmbedLinks, "EMBED_LINKS"},
	{AttachFiles, "ATTACH_FILES"},
	{ReadMessageHistory, "READ_MESSAGE_HISTORY"},
	{Connect, "CONNECT"},
	{Speak, "SPEAK"},
	{Video, "VIDEO"},
	{UseVoiceActivity, "USE_VOICE_ACTIVITY"},
	{PrioritySpeaker, "PRIORITY_SPEAKER"},
	{KickMembers, "KICK_MEMBERS"},
	{BanMembers, "BAN_MEMBERS"},
	{ManageMessages, "MANAGE_MESSAGES"},
	{ManageChannels, "MANAGE_CHANNELS"},
	{Administrator, "ADMINISTRATOR"},
	{ManageRoles, "MANAGE_ROLES"},
	{ManageServer, "MANAGE_SERVER"},
}

func DefaultEveryone() Permission {
	return ViewChannel | SendMessages | EmbedLinks | AttachFiles | ReadMessageHistory |
		Connect | Speak | Video | UseVoiceActivity
}

func DefaultMod() Permission {
	return DefaultEveryone() | KickMembers | BanMembers | ManageMessages | ManageChannels
}

// Has is true if any bit of required is granted, ADMINISTRATOR grants everything
func Has(effective Permission, required Permission) bool {
	return effective&required != 0 || effective&Administrator != 0
}

// Effective ORs the masks of all roles held by a member, no roles means 0
func Effective(roleMasks []Permission) Permission {
	var mask Permission
	for _, m := range roleMasks {
		mask |= m
	}
	return mask
}

// Allowed is the full decision, owners bypass the mask entirely
func Allowed(isOwner bool, roleMasks []Permission, required Permission) bool {
	if isOwner {
		return true
	}
	return Has(Effective(roleMasks), required)
}

func (p Permission) String() string {
	if p == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range names {
		if p&n.perm != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := p &^ All; rest != 0 {
		parts = append(parts, "UNKNOWN")
	}
	return strings.Join(parts, "|")
}
