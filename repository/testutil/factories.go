package testutil

import (
	"time"

	"guildconfig/models"
)

// CreateTestGuildSettings returns a normalized-looking record with every section populated
func CreateTestGuildSettings(guildID string) *models.GuildSettings {
	gs := models.DefaultGuildSettings(guildID)
	gs.Prefix = "!"
	gs.WelcomeEnabled = true
	gs.WelcomeChannel = models.StringPtr("111111111111111111")
	gs.LanguageRoles["fr"] = "222222222222222222"
	gs.RequiredRoleIDs = []string{"333333333333333333"}
	gs.LogChannelID = models.StringPtr("444444444444444444")
	gs.LogEvents = []string{"memberJoin", "messageDelete"}
	gs.TranslationRoutes = []models.TranslationRoute{
		{
			ID:         "route-1",
			Name:       "Main",
			ChannelMap: map[string]string{"fr": "555555555555555555", "en": "666666666666666666"},
		},
	}
	gs.RoleGrantRules = []models.RoleGrantRule{
		{
			ID:          "rule-1",
			Name:        "Verified",
			Condition:   models.ConditionReactionAdd,
			TargetRole:  "777777777777777777",
			Enabled:     true,
			TriggerData: map[string]any{"emoji": "✅", "messageId": "888888888888888888"},
		},
	}
	gs.CustomCommands = map[string]string{"rules": "Read #rules"}

	sentAt := time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)
	gs.RulesAnnouncement.Enabled = true
	gs.RulesAnnouncement.LastSentAt = &sentAt
	gs.RulesAnnouncement.LastChannelID = models.StringPtr("999999999999999999")
	return gs
}
