package models

import "time"

// GuildSettingsPatch carries only the fields a caller intends to change.
// A nil pointer, slice or map means "not supplied". For nullable references
// a pointer to "" clears the reference.
type GuildSettingsPatch struct {
	Prefix *string `json:"prefix,omitempty"`

	WelcomeEnabled *bool   `json:"welcomeEnabled,omitempty"`
	WelcomeMessage *string `json:"welcomeMessage,omitempty"`
	GoodbyeEnabled *bool   `json:"goodbyeEnabled,omitempty"`
	GoodbyeMessage *string `json:"goodbyeMessage,omitempty"`
	WelcomeChannel *string `json:"welcomeChannel,omitempty"`

	// Merged key by key
	LanguageRoles   map[string]string `json:"languageRoles,omitempty"`
	RequiredRoleIDs []string          `json:"requiredRoleIds,omitempty"`

	TicketCategoryID    *string  `json:"ticketCategoryId,omitempty"`
	TicketLogChannelID  *string  `json:"ticketLogChannelId,omitempty"`
	TicketOpenMessageID *string  `json:"ticketOpenMessageId,omitempty"`
	SupportRoleIDs      []string `json:"supportRoleIds,omitempty"`

	LogChannelID *string  `json:"logChannelId,omitempty"`
	LogEvents    []string `json:"logEvents,omitempty"`

	TranslationRoutes []TranslationRoute `json:"translationRoutes,omitempty"`
	RoleGrantRules    []RoleGrantRule    `json:"roleGrantRules,omitempty"`

	// Merged key by key, except Sections which is replaced
	RulesAnnouncement *RulesAnnouncementPatch `json:"rulesAnnouncement,omitempty"`

	// Replaced wholesale so callers can delete entries
	CustomCommands map[string]string `json:"customCommands,omitempty"`
	AutoReplies    map[string]string `json:"autoReplies,omitempty"`
	AutoReacts     map[string]string `json:"autoReacts,omitempty"`
}

// RulesAnnouncementPatch is the partial form of RulesAnnouncement
type RulesAnnouncementPatch struct {
	Enabled     *bool         `json:"enabled,omitempty"`
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Color       *string       `json:"color,omitempty"`
	Sections    []RuleSection `json:"sections,omitempty"`
	FooterText  *string       `json:"footerText,omitempty"`

	ShowThumbnail *bool `json:"showThumbnail,omitempty"`
	ShowTimestamp *bool `json:"showTimestamp,omitempty"`

	AcceptButtonText   *string `json:"acceptButtonText,omitempty"`
	DeclineButtonText  *string `json:"declineButtonText,omitempty"`
	AcceptButtonEmoji  *string `json:"acceptButtonEmoji,omitempty"`
	DeclineButtonEmoji *string `json:"declineButtonEmoji,omitempty"`

	AutoSend      *bool   `json:"autoSend,omitempty"`
	TargetChannel *string `json:"targetChannel,omitempty"`
	LastMessageID *string `json:"lastMessageId,omitempty"`
	// A zero time clears the timestamp
	LastSentAt    *time.Time `json:"lastSentAt,omitempty"`
	LastChannelID *string    `json:"lastChannelId,omitempty"`
}
