package service

import (
	"time"

	"guildconfig/models"
)

// Merge applies patch on top of current and returns a new record. Fields the
// patch does not mention keep their current value. LanguageRoles and
// RulesAnnouncement merge key by key; lists and the auto-response maps are
// replaced wholesale; every other scalar is overwritten.
func Merge(current *models.GuildSettings, patch *models.GuildSettingsPatch) *models.GuildSettings {
	var out *models.GuildSettings
	if current == nil {
		out = &models.GuildSettings{}
	} else {
		out = current.Clone()
	}
	if patch == nil {
		return out
	}

	setString(&out.Prefix, patch.Prefix)
	setBool(&out.WelcomeEnabled, patch.WelcomeEnabled)
	setString(&out.WelcomeMessage, patch.WelcomeMessage)
	setBool(&out.GoodbyeEnabled, patch.GoodbyeEnabled)
	setString(&out.GoodbyeMessage, patch.GoodbyeMessage)

	setNullable(&out.WelcomeChannel, patch.WelcomeChannel)
	setNullable(&out.TicketCategoryID, patch.TicketCategoryID)
	setNullable(&out.TicketLogChannelID, patch.TicketLogChannelID)
	setNullable(&out.TicketOpenMessageID, patch.TicketOpenMessageID)
	setNullable(&out.LogChannelID, patch.LogChannelID)

	if patch.LanguageRoles != nil {
		if out.LanguageRoles == nil {
			out.LanguageRoles = make(map[string]string, len(patch.LanguageRoles))
		}
		for code, roleID := range patch.LanguageRoles {
			out.LanguageRoles[code] = roleID
		}
	}

	if patch.RequiredRoleIDs != nil {
		out.RequiredRoleIDs = models.CloneStrings(patch.RequiredRoleIDs)
	}
	if patch.SupportRoleIDs != nil {
		out.SupportRoleIDs = models.CloneStrings(patch.SupportRoleIDs)
	}
	if patch.LogEvents != nil {
		out.LogEvents = models.CloneStrings(patch.LogEvents)
	}
	if patch.TranslationRoutes != nil {
		out.TranslationRoutes = models.CloneTranslationRoutes(patch.TranslationRoutes)
	}
	if patch.RoleGrantRules != nil {
		out.RoleGrantRules = models.CloneRoleGrantRules(patch.RoleGrantRules)
	}
	if patch.CustomCommands != nil {
		out.CustomCommands = models.CloneStringMap(patch.CustomCommands)
	}
	if patch.AutoReplies != nil {
		out.AutoReplies = models.CloneStringMap(patch.AutoReplies)
	}
	if patch.AutoReacts != nil {
		out.AutoReacts = models.CloneStringMap(patch.AutoReacts)
	}

	if patch.RulesAnnouncement != nil {
		mergeRulesAnnouncement(&out.RulesAnnouncement, patch.RulesAnnouncement)
	}

	return out
}

func mergeRulesAnnouncement(ra *models.RulesAnnouncement, p *models.RulesAnnouncementPatch) {
	setBool(&ra.Enabled, p.Enabled)
	setString(&ra.Title, p.Title)
	setString(&ra.Description, p.Description)
	setString(&ra.Color, p.Color)
	setString(&ra.FooterText, p.FooterText)
	setBool(&ra.ShowThumbnail, p.ShowThumbnail)
	setBool(&ra.ShowTimestamp, p.ShowTimestamp)
	setString(&ra.AcceptButtonText, p.AcceptButtonText)
	setString(&ra.DeclineButtonText, p.DeclineButtonText)
	setString(&ra.AcceptButtonEmoji, p.AcceptButtonEmoji)
	setString(&ra.DeclineButtonEmoji, p.DeclineButtonEmoji)
	setBool(&ra.AutoSend, p.AutoSend)
	setNullable(&ra.TargetChannel, p.TargetChannel)
	setNullable(&ra.LastMessageID, p.LastMessageID)
	setNullable(&ra.LastChannelID, p.LastChannelID)

	if p.Sections != nil {
		ra.Sections = models.CloneRuleSections(p.Sections)
	}
	if p.LastSentAt != nil {
		if p.LastSentAt.IsZero() {
			ra.LastSentAt = nil
		} else {
			t := *p.LastSentAt
			ra.LastSentAt = &t
		}
	}
}

// ComposePatches returns a single patch equivalent to applying p1 then p2:
// Merge(Merge(c, p1), p2) and Merge(c, ComposePatches(p1, p2)) agree for every c.
func ComposePatches(p1, p2 *models.GuildSettingsPatch) *models.GuildSettingsPatch {
	out := &models.GuildSettingsPatch{}
	overlayPatch(out, p1)
	overlayPatch(out, p2)
	return out
}

// overlayPatch copies every field p supplies onto out
func overlayPatch(out, p *models.GuildSettingsPatch) {
	if p == nil {
		return
	}

	overrideString(&out.Prefix, p.Prefix)
	overrideBool(&out.WelcomeEnabled, p.WelcomeEnabled)
	overrideString(&out.WelcomeMessage, p.WelcomeMessage)
	overrideBool(&out.GoodbyeEnabled, p.GoodbyeEnabled)
	overrideString(&out.GoodbyeMessage, p.GoodbyeMessage)
	overrideString(&out.WelcomeChannel, p.WelcomeChannel)
	overrideString(&out.TicketCategoryID, p.TicketCategoryID)
	overrideString(&out.TicketLogChannelID, p.TicketLogChannelID)
	overrideString(&out.TicketOpenMessageID, p.TicketOpenMessageID)
	overrideString(&out.LogChannelID, p.LogChannelID)

	if p.LanguageRoles != nil {
		if out.LanguageRoles == nil {
			out.LanguageRoles = make(map[string]string, len(p.LanguageRoles))
		}
		for code, roleID := range p.LanguageRoles {
			out.LanguageRoles[code] = roleID
		}
	}

	if p.RequiredRoleIDs != nil {
		out.RequiredRoleIDs = models.CloneStrings(p.RequiredRoleIDs)
	}
	if p.SupportRoleIDs != nil {
		out.SupportRoleIDs = models.CloneStrings(p.SupportRoleIDs)
	}
	if p.LogEvents != nil {
		out.LogEvents = models.CloneStrings(p.LogEvents)
	}
	if p.TranslationRoutes != nil {
		out.TranslationRoutes = models.CloneTranslationRoutes(p.TranslationRoutes)
	}
	if p.RoleGrantRules != nil {
		out.RoleGrantRules = models.CloneRoleGrantRules(p.RoleGrantRules)
	}
	if p.CustomCommands != nil {
		out.CustomCommands = models.CloneStringMap(p.CustomCommands)
	}
	if p.AutoReplies != nil {
		out.AutoReplies = models.CloneStringMap(p.AutoReplies)
	}
	if p.AutoReacts != nil {
		out.AutoReacts = models.CloneStringMap(p.AutoReacts)
	}

	if p.RulesAnnouncement != nil {
		if out.RulesAnnouncement == nil {
			out.RulesAnnouncement = &models.RulesAnnouncementPatch{}
		}
		overlayRulesAnnouncement(out.RulesAnnouncement, p.RulesAnnouncement)
	}
}

func overlayRulesAnnouncement(out, p *models.RulesAnnouncementPatch) {
	overrideBool(&out.Enabled, p.Enabled)
	overrideString(&out.Title, p.Title)
	overrideString(&out.Description, p.Description)
	overrideString(&out.Color, p.Color)
	overrideString(&out.FooterText, p.FooterText)
	overrideBool(&out.ShowThumbnail, p.ShowThumbnail)
	overrideBool(&out.ShowTimestamp, p.ShowTimestamp)
	overrideString(&out.AcceptButtonText, p.AcceptButtonText)
	overrideString(&out.DeclineButtonText, p.DeclineButtonText)
	overrideString(&out.AcceptButtonEmoji, p.AcceptButtonEmoji)
	overrideString(&out.DeclineButtonEmoji, p.DeclineButtonEmoji)
	overrideBool(&out.AutoSend, p.AutoSend)
	overrideString(&out.TargetChannel, p.TargetChannel)
	overrideString(&out.LastMessageID, p.LastMessageID)
	overrideString(&out.LastChannelID, p.LastChannelID)
	overrideTime(&out.LastSentAt, p.LastSentAt)
	if p.Sections != nil {
		out.Sections = models.CloneRuleSections(p.Sections)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// setNullable treats a pointer to "" as an explicit clear
func setNullable(dst **string, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		*dst = nil
		return
	}
	s := *v
	*dst = &s
}

func overrideString(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}

func overrideBool(dst **bool, v *bool) {
	if v != nil {
		b := *v
		*dst = &b
	}
}

func overrideTime(dst **time.Time, v *time.Time) {
	if v != nil {
		t := *v
		*dst = &t
	}
}
