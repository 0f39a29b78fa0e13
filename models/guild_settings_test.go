package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSnowflake(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"12345678901234567", true},
		{"123456789012345678", true},
		{"12345678901234567890", true},
		{"1234567890123456", false},
		{"123456789012345678901", false},
		{"12345678901234567a", false},
		{" 123456789012345678", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSnowflake(tt.id), tt.id)
	}
}

func TestDefaultGuildSettings(t *testing.T) {
	gs := DefaultGuildSettings("123456789012345678")

	assert.Equal(t, ".", gs.Prefix)
	assert.False(t, gs.WelcomeEnabled)
	assert.False(t, gs.GoodbyeEnabled)
	assert.Nil(t, gs.WelcomeChannel)
	assert.Len(t, gs.LanguageRoles, 8)
	for _, code := range LanguageCodes {
		assert.Equal(t, "", gs.LanguageRoles[code])
	}
	assert.NotNil(t, gs.RequiredRoleIDs)
	assert.NotNil(t, gs.TranslationRoutes)
	assert.NotNil(t, gs.RoleGrantRules)
	assert.False(t, gs.RulesAnnouncement.Enabled)
	assert.Equal(t, DefaultRulesColor, gs.RulesAnnouncement.Color)
	require.Len(t, gs.RulesAnnouncement.Sections, 1)
	assert.Equal(t, "General Rules", gs.RulesAnnouncement.Sections[0].Name)
}

func TestGuildSettings_CloneIsDeep(t *testing.T) {
	sentAt := time.Now()
	gs := DefaultGuildSettings("123456789012345678")
	gs.WelcomeChannel = StringPtr("111111111111111111")
	gs.RoleGrantRules = []RoleGrantRule{{ID: "r1", TriggerData: map[string]any{"emoji": "✅", "list": []any{"a"}}}}
	gs.TranslationRoutes = []TranslationRoute{{ID: "t1", ChannelMap: map[string]string{"fr": "1"}}}
	gs.RulesAnnouncement.LastSentAt = &sentAt

	clone := gs.Clone()
	require.Equal(t, gs, clone)

	*clone.WelcomeChannel = "changed"
	clone.LanguageRoles["fr"] = "changed"
	clone.RoleGrantRules[0].TriggerData["emoji"] = "changed"
	clone.RoleGrantRules[0].TriggerData["list"].([]any)[0] = "changed"
	clone.TranslationRoutes[0].ChannelMap["fr"] = "changed"
	clone.RulesAnnouncement.Sections[0].Name = "changed"
	*clone.RulesAnnouncement.LastSentAt = time.Time{}

	assert.Equal(t, "111111111111111111", *gs.WelcomeChannel)
	assert.Equal(t, "", gs.LanguageRoles["fr"])
	assert.Equal(t, "✅", gs.RoleGrantRules[0].TriggerData["emoji"])
	assert.Equal(t, "a", gs.RoleGrantRules[0].TriggerData["list"].([]any)[0])
	assert.Equal(t, "1", gs.TranslationRoutes[0].ChannelMap["fr"])
	assert.Equal(t, "General Rules", gs.RulesAnnouncement.Sections[0].Name)
	assert.False(t, gs.RulesAnnouncement.LastSentAt.IsZero())
}

func TestGuildSettings_Helpers(t *testing.T) {
	gs := DefaultGuildSettings("123456789012345678")
	assert.False(t, gs.HasWelcomeChannel())
	assert.False(t, gs.LogsEvent("memberJoin"))

	gs.LogChannelID = StringPtr("111111111111111111")
	gs.LogEvents = []string{"memberJoin"}
	assert.True(t, gs.HasLogChannel())
	assert.True(t, gs.LogsEvent("memberJoin"))
	assert.False(t, gs.LogsEvent("roleCreate"))

	gs.RoleGrantRules = []RoleGrantRule{
		{ID: "a", Condition: ConditionMemberJoin, Enabled: true},
		{ID: "b", Condition: ConditionMemberJoin, Enabled: false},
		{ID: "c", Condition: ConditionReactionAdd, Enabled: true},
	}
	rules := gs.EnabledRoleGrantRules(ConditionMemberJoin)
	require.Len(t, rules, 1)
	assert.Equal(t, "a", rules[0].ID)

	assert.True(t, ConditionCommandUse.IsValid())
	assert.False(t, RoleGrantCondition("bogus").IsValid())
}

func TestToDocument_MaterializesCollections(t *testing.T) {
	gs := &GuildSettings{GuildID: "123456789012345678"}
	doc := gs.ToDocument()

	assert.Equal(t, []any{}, doc["requiredRoleIds"])
	assert.Equal(t, []any{}, doc["translationRoutes"])
	assert.Equal(t, map[string]any{}, doc["languageRoles"])
	assert.Equal(t, map[string]any{}, doc["customCommands"])
	assert.Nil(t, doc["welcomeChannel"])

	ra := doc["rulesAnnouncement"].(map[string]any)
	assert.Equal(t, []any{}, ra["sections"])
	assert.Nil(t, ra["lastSentAt"])
}

func TestDecodePatch(t *testing.T) {
	sentAt := time.Date(2024, 2, 3, 4, 5, 6, 7000000, time.UTC)
	doc := Document{
		"prefix":         "!",
		"welcomeChannel": nil,
		"logChannelId":   "111111111111111111",
		"languageRoles":  map[string]any{"fr": "222222222222222222", "en": 3},
		"supportRoleIds": []string{"333333333333333333"},
		"roleGrantRules": []any{
			map[string]any{"id": "r1", "targetRole": "444444444444444444", "condition": "button_click", "enabled": false},
		},
		"rulesAnnouncement": map[string]any{
			"lastSentAt": sentAt.Format(time.RFC3339Nano),
			"sections":   []any{map[string]any{"name": "n", "value": "v", "inline": true}},
		},
	}

	p := DecodePatch(doc)

	require.NotNil(t, p.Prefix)
	assert.Equal(t, "!", *p.Prefix)
	require.NotNil(t, p.WelcomeChannel)
	assert.Equal(t, "", *p.WelcomeChannel, "explicit null clears the reference")
	assert.Nil(t, p.TicketCategoryID, "absent field stays unset")
	assert.Equal(t, map[string]string{"fr": "222222222222222222"}, p.LanguageRoles)
	assert.Equal(t, []string{"333333333333333333"}, p.SupportRoleIDs)
	assert.Nil(t, p.RequiredRoleIDs)

	require.Len(t, p.RoleGrantRules, 1)
	assert.Equal(t, ConditionButtonClick, p.RoleGrantRules[0].Condition)
	assert.False(t, p.RoleGrantRules[0].Enabled)

	require.NotNil(t, p.RulesAnnouncement)
	require.NotNil(t, p.RulesAnnouncement.LastSentAt)
	assert.True(t, sentAt.Equal(*p.RulesAnnouncement.LastSentAt))
	assert.Equal(t, []RuleSection{{Name: "n", Value: "v", Inline: true}}, p.RulesAnnouncement.Sections)
	assert.Nil(t, p.RulesAnnouncement.Title)
}
