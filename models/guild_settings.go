package models

import "time"

// RoleGrantCondition is the trigger that makes a role grant rule fire
type RoleGrantCondition string

const (
	ConditionMemberJoin  RoleGrantCondition = "member_join"
	ConditionButtonClick RoleGrantCondition = "button_click"
	ConditionReactionAdd RoleGrantCondition = "reaction_add"
	ConditionCommandUse  RoleGrantCondition = "command_use"
)

// RoleGrantConditions lists every accepted condition
var RoleGrantConditions = []RoleGrantCondition{
	ConditionMemberJoin,
	ConditionButtonClick,
	ConditionReactionAdd,
	ConditionCommandUse,
}

// IsValid checks the condition against the fixed enumeration
func (c RoleGrantCondition) IsValid() bool {
	for _, known := range RoleGrantConditions {
		if c == known {
			return true
		}
	}
	return false
}

// LanguageCodes are the languages a guild can map to a role, in display order
var LanguageCodes = []string{"fr", "en", "es", "de", "pt", "ru", "hu", "it"}

// IsLanguageCode reports whether code is one of LanguageCodes
func IsLanguageCode(code string) bool {
	for _, known := range LanguageCodes {
		if code == known {
			return true
		}
	}
	return false
}

// LogEvents are the guild events that can be mirrored to the log channel
var LogEvents = []string{
	"memberJoin", "memberLeave",
	"messageDelete", "messageUpdate",
	"channelCreate", "channelDelete", "channelUpdate",
	"roleCreate", "roleDelete", "roleUpdate",
}

// IsLogEvent reports whether name is one of LogEvents
func IsLogEvent(name string) bool {
	for _, known := range LogEvents {
		if name == known {
			return true
		}
	}
	return false
}

// GuildSettings represents per-guild configuration settings
type GuildSettings struct {
	GuildID string `json:"guildId" validate:"required,snowflake"`
	Prefix  string `json:"prefix" validate:"max=5"`

	WelcomeEnabled bool    `json:"welcomeEnabled"`
	WelcomeMessage string  `json:"welcomeMessage" validate:"max=2000"`
	GoodbyeEnabled bool    `json:"goodbyeEnabled"`
	GoodbyeMessage string  `json:"goodbyeMessage" validate:"max=2000"`
	WelcomeChannel *string `json:"welcomeChannel" validate:"omitempty,snowflake"` // Nullable - nil disables welcome posts

	LanguageRoles   map[string]string `json:"languageRoles" validate:"dive,keys,oneof=fr en es de pt ru hu it,endkeys,omitempty,snowflake"`
	RequiredRoleIDs []string          `json:"requiredRoleIds" validate:"dive,snowflake"`

	TicketCategoryID    *string  `json:"ticketCategoryId" validate:"omitempty,snowflake"`
	TicketLogChannelID  *string  `json:"ticketLogChannelId" validate:"omitempty,snowflake"`
	TicketOpenMessageID *string  `json:"ticketOpenMessageId" validate:"omitempty,snowflake"`
	SupportRoleIDs      []string `json:"supportRoleIds" validate:"dive,snowflake"`

	LogChannelID *string  `json:"logChannelId" validate:"omitempty,snowflake"`
	LogEvents    []string `json:"logEvents" validate:"unique,dive,logevent"`

	TranslationRoutes []TranslationRoute `json:"translationRoutes" validate:"unique=ID,dive"`
	RoleGrantRules    []RoleGrantRule    `json:"roleGrantRules" validate:"unique=ID,dive"`
	RulesAnnouncement RulesAnnouncement  `json:"rulesAnnouncement"`

	CustomCommands map[string]string `json:"customCommands" validate:"dive,keys,required,max=32,endkeys,required,max=2000"`
	AutoReplies    map[string]string `json:"autoReplies" validate:"dive,keys,required,max=100,endkeys,required,max=2000"`
	AutoReacts     map[string]string `json:"autoReacts" validate:"dive,keys,required,max=100,endkeys,required,max=64"`
}

// TranslationRoute links one channel per language so messages are mirrored between them
type TranslationRoute struct {
	ID         string            `json:"id" validate:"required"`
	Name       string            `json:"name" validate:"required,max=100"`
	ChannelMap map[string]string `json:"channelMap" validate:"dive,keys,required,endkeys,snowflake"`
}

// RoleGrantRule grants TargetRole to a member when Condition fires
type RoleGrantRule struct {
	ID          string             `json:"id" validate:"required"`
	Name        string             `json:"name" validate:"required,max=100"`
	Description string             `json:"description" validate:"max=500"`
	Condition   RoleGrantCondition `json:"condition" validate:"rolecondition"`
	TargetRole  string             `json:"targetRole" validate:"required,snowflake"`
	Enabled     bool               `json:"enabled"`
	TriggerData map[string]any     `json:"triggerData"`
}

// RuleSection is one embed field of the rules announcement
type RuleSection struct {
	Name   string `json:"name" validate:"required,max=256"`
	Value  string `json:"value" validate:"required,max=1024"`
	Inline bool   `json:"inline"`
}

// RulesAnnouncement configures the rules embed members must accept
type RulesAnnouncement struct {
	Enabled     bool          `json:"enabled"`
	Title       string        `json:"title" validate:"max=256"`
	Description string        `json:"description" validate:"max=1024"`
	Color       string        `json:"color" validate:"rgbhex"`
	Sections    []RuleSection `json:"sections" validate:"dive"`
	FooterText  string        `json:"footerText" validate:"max=512"`

	ShowThumbnail bool `json:"showThumbnail"`
	ShowTimestamp bool `json:"showTimestamp"`

	AcceptButtonText   string `json:"acceptButtonText" validate:"max=80"`
	DeclineButtonText  string `json:"declineButtonText" validate:"max=80"`
	AcceptButtonEmoji  string `json:"acceptButtonEmoji" validate:"max=10"`
	DeclineButtonEmoji string `json:"declineButtonEmoji" validate:"max=10"`

	// Auto-send bookkeeping, all optional
	AutoSend      bool       `json:"autoSend"`
	TargetChannel *string    `json:"targetChannel" validate:"omitempty,snowflake"`
	LastMessageID *string    `json:"lastMessageId" validate:"omitempty,snowflake"`
	LastSentAt    *time.Time `json:"lastSentAt"`
	LastChannelID *string    `json:"lastChannelId" validate:"omitempty,snowflake"`
}

// Default values for a guild that has never been configured
const (
	DefaultPrefix         = "."
	DefaultWelcomeMessage = "Welcome {user} to the server!"
	DefaultGoodbyeMessage = "Goodbye {username}!"

	DefaultRulesTitle              = "Server Rules"
	DefaultRulesDescription        = "Please read and accept our rules to access the server."
	DefaultRulesColor              = "#7289DA"
	DefaultRulesFooterText         = "By accepting, you will automatically receive your access roles"
	DefaultRulesAcceptButtonText   = "✅ I accept the rules"
	DefaultRulesDeclineButtonText  = "❌ I decline"
	DefaultRulesAcceptButtonEmoji  = "📋"
	DefaultRulesDeclineButtonEmoji = "🚫"
)

// DefaultRuleSections returns the section shown until a guild writes its own rules
func DefaultRuleSections() []RuleSection {
	return []RuleSection{
		{
			Name:   "General Rules",
			Value:  "• Respect all members\n• No spam or inappropriate content\n• Use the right channels\n• Follow moderator instructions",
			Inline: false,
		},
	}
}

// DefaultRulesAnnouncement returns a disabled rules announcement with stock captions
func DefaultRulesAnnouncement() RulesAnnouncement {
	return RulesAnnouncement{
		Enabled:            false,
		Title:              DefaultRulesTitle,
		Description:        DefaultRulesDescription,
		Color:              DefaultRulesColor,
		Sections:           DefaultRuleSections(),
		FooterText:         DefaultRulesFooterText,
		ShowThumbnail:      true,
		ShowTimestamp:      true,
		AcceptButtonText:   DefaultRulesAcceptButtonText,
		DeclineButtonText:  DefaultRulesDeclineButtonText,
		AcceptButtonEmoji:  DefaultRulesAcceptButtonEmoji,
		DeclineButtonEmoji: DefaultRulesDeclineButtonEmoji,
	}
}

// DefaultLanguageRoles returns every language code mapped to no role
func DefaultLanguageRoles() map[string]string {
	roles := make(map[string]string, len(LanguageCodes))
	for _, code := range LanguageCodes {
		roles[code] = ""
	}
	return roles
}

// DefaultGuildSettings builds the complete default record for a guild
func DefaultGuildSettings(guildID string) *GuildSettings {
	return &GuildSettings{
		GuildID:           guildID,
		Prefix:            DefaultPrefix,
		WelcomeEnabled:    false,
		WelcomeMessage:    DefaultWelcomeMessage,
		GoodbyeEnabled:    false,
		GoodbyeMessage:    DefaultGoodbyeMessage,
		LanguageRoles:     DefaultLanguageRoles(),
		RequiredRoleIDs:   []string{},
		SupportRoleIDs:    []string{},
		LogEvents:         []string{},
		TranslationRoutes: []TranslationRoute{},
		RoleGrantRules:    []RoleGrantRule{},
		RulesAnnouncement: DefaultRulesAnnouncement(),
		CustomCommands:    map[string]string{},
		AutoReplies:       map[string]string{},
		AutoReacts:        map[string]string{},
	}
}

// HasWelcomeChannel checks if a welcome channel is configured
func (gs *GuildSettings) HasWelcomeChannel() bool {
	return gs.WelcomeChannel != nil && *gs.WelcomeChannel != ""
}

// HasLogChannel checks if a log channel is configured
func (gs *GuildSettings) HasLogChannel() bool {
	return gs.LogChannelID != nil && *gs.LogChannelID != ""
}

// LogsEvent reports whether event should be mirrored to the log channel
func (gs *GuildSettings) LogsEvent(event string) bool {
	if !gs.HasLogChannel() {
		return false
	}
	for _, e := range gs.LogEvents {
		if e == event {
			return true
		}
	}
	return false
}

// LanguageRole returns the role mapped to a language code, or "" when unset
func (gs *GuildSettings) LanguageRole(code string) string {
	return gs.LanguageRoles[code]
}

// EnabledRoleGrantRules returns the enabled rules for one condition, in order
func (gs *GuildSettings) EnabledRoleGrantRules(condition RoleGrantCondition) []RoleGrantRule {
	var rules []RoleGrantRule
	for _, rule := range gs.RoleGrantRules {
		if rule.Enabled && rule.Condition == condition {
			rules = append(rules, rule)
		}
	}
	return rules
}

// Clone returns a deep copy that shares no maps, slices or pointers with gs
func (gs *GuildSettings) Clone() *GuildSettings {
	if gs == nil {
		return nil
	}
	out := *gs
	out.WelcomeChannel = cloneString(gs.WelcomeChannel)
	out.TicketCategoryID = cloneString(gs.TicketCategoryID)
	out.TicketLogChannelID = cloneString(gs.TicketLogChannelID)
	out.TicketOpenMessageID = cloneString(gs.TicketOpenMessageID)
	out.LogChannelID = cloneString(gs.LogChannelID)
	out.LanguageRoles = cloneStringMap(gs.LanguageRoles)
	out.RequiredRoleIDs = cloneStrings(gs.RequiredRoleIDs)
	out.SupportRoleIDs = cloneStrings(gs.SupportRoleIDs)
	out.LogEvents = cloneStrings(gs.LogEvents)
	out.CustomCommands = cloneStringMap(gs.CustomCommands)
	out.AutoReplies = cloneStringMap(gs.AutoReplies)
	out.AutoReacts = cloneStringMap(gs.AutoReacts)

	out.TranslationRoutes = CloneTranslationRoutes(gs.TranslationRoutes)
	out.RoleGrantRules = CloneRoleGrantRules(gs.RoleGrantRules)
	out.RulesAnnouncement = gs.RulesAnnouncement.Clone()
	return &out
}

// CloneTranslationRoutes deep-copies a route list, preserving nil
func CloneTranslationRoutes(routes []TranslationRoute) []TranslationRoute {
	if routes == nil {
		return nil
	}
	out := make([]TranslationRoute, len(routes))
	for i, route := range routes {
		route.ChannelMap = cloneStringMap(route.ChannelMap)
		out[i] = route
	}
	return out
}

// CloneRoleGrantRules deep-copies a rule list, preserving nil
func CloneRoleGrantRules(rules []RoleGrantRule) []RoleGrantRule {
	if rules == nil {
		return nil
	}
	out := make([]RoleGrantRule, len(rules))
	for i, rule := range rules {
		rule.TriggerData, _ = CloneValue(rule.TriggerData).(map[string]any)
		out[i] = rule
	}
	return out
}

// CloneRuleSections copies a section list, preserving nil
func CloneRuleSections(sections []RuleSection) []RuleSection {
	if sections == nil {
		return nil
	}
	out := make([]RuleSection, len(sections))
	copy(out, sections)
	return out
}

// Clone returns a deep copy of the announcement
func (ra RulesAnnouncement) Clone() RulesAnnouncement {
	out := ra
	out.Sections = CloneRuleSections(ra.Sections)
	out.TargetChannel = cloneString(ra.TargetChannel)
	out.LastMessageID = cloneString(ra.LastMessageID)
	out.LastChannelID = cloneString(ra.LastChannelID)
	if ra.LastSentAt != nil {
		t := *ra.LastSentAt
		out.LastSentAt = &t
	}
	return out
}

// CloneValue deep-copies JSON-shaped values (maps, slices, scalars)
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		if val == nil {
			return []any(nil)
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case map[string]string:
		return cloneStringMap(val)
	case []string:
		return cloneStrings(val)
	default:
		return val
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CloneStrings copies a string list, preserving nil
func CloneStrings(in []string) []string {
	return cloneStrings(in)
}

// CloneStringMap copies a string map, preserving nil
func CloneStringMap(in map[string]string) map[string]string {
	return cloneStringMap(in)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}
